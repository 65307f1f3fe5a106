package rest

import (
	"encoding/json"
	"net/http"

	"github.com/abgdnv/gocatalog/pkg/web"
	"github.com/google/uuid"
)

// pathIDs parses the product and store ids of an association route.
func (h *Handler) pathIDs(w http.ResponseWriter, r *http.Request, withStore bool) (productID, storeID uuid.UUID, ok bool) {
	mLogger := h.loggerWithReqID(r)
	productID, ok = web.ParsePathID(w, r, mLogger, "productId")
	if !ok || !withStore {
		return productID, uuid.Nil, ok
	}
	storeID, ok = web.ParsePathID(w, r, mLogger, "storeId")
	return productID, storeID, ok
}

// AddStoreToProduct links a store to a product and returns the product.
func (h *Handler) AddStoreToProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	productID, storeID, ok := h.pathIDs(w, r, true)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to add store to product", "productID", productID, "storeID", storeID)

	product, err := h.associations.AddStoreToProduct(r.Context(), productID, storeID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to add store to product")
		return
	}
	mLogger.InfoContext(r.Context(), "Store added to product", "productID", productID, "storeID", storeID)
	web.RespondJSON(w, mLogger, http.StatusOK, product)
}

// FindStoresFromProduct lists the stores linked to a product.
func (h *Handler) FindStoresFromProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	productID, _, ok := h.pathIDs(w, r, false)
	if !ok {
		return
	}

	stores, err := h.associations.FindStoresFromProduct(r.Context(), productID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to fetch stores of product")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved stores of product", "productID", productID, "count", len(stores))
	web.RespondJSON(w, mLogger, http.StatusOK, stores)
}

// FindStoreFromProduct returns one store linked to a product.
func (h *Handler) FindStoreFromProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	productID, storeID, ok := h.pathIDs(w, r, true)
	if !ok {
		return
	}

	store, err := h.associations.FindStoreFromProduct(r.Context(), productID, storeID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to fetch store of product")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, store)
}

// UpdateStoresFromProduct replaces the product's stores with the ids in the JSON array body.
func (h *Handler) UpdateStoresFromProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	productID, _, ok := h.pathIDs(w, r, false)
	if !ok {
		return
	}
	var raw []string
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	storeIDs, ok := web.ParseIDs(w, mLogger, raw)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to replace stores of product", "productID", productID, "count", len(storeIDs))

	product, err := h.associations.UpdateStoresFromProduct(r.Context(), productID, storeIDs)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update stores of product")
		return
	}
	mLogger.InfoContext(r.Context(), "Stores of product replaced", "productID", productID, "count", len(product.Stores))
	web.RespondJSON(w, mLogger, http.StatusOK, product)
}

// DeleteStoreFromProduct unlinks a store from a product and returns the product.
func (h *Handler) DeleteStoreFromProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	productID, storeID, ok := h.pathIDs(w, r, true)
	if !ok {
		return
	}

	product, err := h.associations.DeleteStoreFromProduct(r.Context(), productID, storeID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to remove store from product")
		return
	}
	mLogger.InfoContext(r.Context(), "Store removed from product", "productID", productID, "storeID", storeID)
	web.RespondJSON(w, mLogger, http.StatusOK, product)
}
