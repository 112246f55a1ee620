/**
 * @description
 * HTTP handlers for reference data (products, cities, event types) and file
 * uploads. Reads are public; writes are admin-only except uploads, which any
 * active member may create and owners may delete.
 */

package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// ListProductsHandler returns the merchandise catalog. Admins see inactive
// entries with ?all=true.
func (h *Handlers) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	includeInactive := false
	if r.URL.Query().Get("all") == "true" {
		ident, ok := identityFrom(r)
		includeInactive = ok && ident.IsAdmin()
	}

	products, err := h.svc.Catalog.ListProducts(r.Context(), includeInactive)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

// CreateProductHandler adds a catalog entry (admin).
func (h *Handlers) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProductRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	product, err := h.svc.Catalog.CreateProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, product)
}

// UpdateProductHandler replaces a catalog entry (admin).
func (h *Handlers) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	var req domain.CreateProductRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	product, err := h.svc.Catalog.UpdateProduct(r.Context(), productID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// DeleteProductHandler removes a catalog entry (admin).
func (h *Handlers) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	if err := h.svc.Catalog.DeleteProduct(r.Context(), productID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListCitiesHandler returns the reference cities.
func (h *Handlers) ListCitiesHandler(w http.ResponseWriter, r *http.Request) {
	cities, err := h.svc.Catalog.ListCities(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cities)
}

// CreateCityHandler adds a reference city (admin).
func (h *Handlers) CreateCityHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCityRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	city, err := h.svc.Catalog.CreateCity(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, city)
}

// DeleteCityHandler removes a reference city (admin).
func (h *Handlers) DeleteCityHandler(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "id")
	if cityID == "" {
		h.writeError(w, http.StatusBadRequest, "city ID is required")
		return
	}

	if err := h.svc.Catalog.DeleteCity(r.Context(), cityID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListEventTypesHandler returns the event categories.
func (h *Handlers) ListEventTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.Catalog.ListEventTypes(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, types)
}

// CreateEventTypeHandler adds an event category (admin).
func (h *Handlers) CreateEventTypeHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEventTypeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	eventType, err := h.svc.Catalog.CreateEventType(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, eventType)
}

// DeleteEventTypeHandler removes an event category (admin).
func (h *Handlers) DeleteEventTypeHandler(w http.ResponseWriter, r *http.Request) {
	typeID := chi.URLParam(r, "id")
	if typeID == "" {
		h.writeError(w, http.StatusBadRequest, "event type ID is required")
		return
	}

	if err := h.svc.Catalog.DeleteEventType(r.Context(), typeID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UploadFileHandler stores a multipart file upload on disk and returns its
// metadata. The form field is named "file".
func (h *Handlers) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart body or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "form field 'file' is required")
		return
	}
	defer file.Close()

	upload, err := h.svc.Uploads.Save(r.Context(), ident.UserID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, upload)
}

// DownloadFileHandler streams a stored file back to the client.
func (h *Handlers) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "id")
	if uploadID == "" {
		h.writeError(w, http.StatusBadRequest, "upload ID is required")
		return
	}

	upload, path, err := h.svc.Uploads.Get(r.Context(), uploadID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	if upload.ContentType != "" {
		w.Header().Set("Content-Type", upload.ContentType)
	}
	w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(upload.FileName))
	http.ServeContent(w, r, upload.FileName, upload.CreatedAt, f)
}

// DeleteFileHandler removes an upload; allowed for the owner and admins.
func (h *Handlers) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	uploadID := chi.URLParam(r, "id")
	if uploadID == "" {
		h.writeError(w, http.StatusBadRequest, "upload ID is required")
		return
	}

	if err := h.svc.Uploads.Delete(r.Context(), uploadID, ident.UserID, ident.IsAdmin()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
