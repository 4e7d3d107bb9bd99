// Package api serves the dataset catalog and byte-size histograms over HTTP.
package api

import (
	"VPNSpectra/internal/catalog"
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/model"
	"VPNSpectra/internal/query"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	querier  query.Querier
	rootPath string
}

// NewRouter registers every API route. gatherer may be nil, in which case
// /metrics is not served.
func NewRouter(querier query.Querier, rootPath string, gatherer prometheus.Gatherer) *mux.Router {
	h := &APIHandler{querier: querier, rootPath: rootPath}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/catalog", h.catalogHandler).Methods("GET")
	r.HandleFunc("/api/v1/histogram", h.histogramHandler).Methods("GET")
	r.HandleFunc("/api/v1/histogram/{encryption}", h.histogramHandler).Methods("GET")
	r.HandleFunc("/api/v1/ranges", h.rangesHandler).Methods("GET")
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// catalogHandler lists every dataset shard with its path and label.
func (h *APIHandler) catalogHandler(w http.ResponseWriter, r *http.Request) {
	entries := catalog.All()
	list := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		label := model.LabelFor(e.Encryption, e.Category)
		list = append(list, map[string]interface{}{
			"encryption": e.Encryption.String(),
			"category":   e.Category.String(),
			"path":       e.Path(h.rootPath),
			"label":      []interface{}{label[0], label[1]},
		})
	}
	writeStruct(w, map[string]interface{}{"entries": list})
}

// histogramHandler returns the byte-size histogram, optionally restricted to
// the encryption named in the path.
func (h *APIHandler) histogramHandler(w http.ResponseWriter, r *http.Request) {
	var enc *model.Encryption
	if name, ok := mux.Vars(r)["encryption"]; ok {
		parsed, err := model.ParseEncryption(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		enc = &parsed
	}

	hist, err := h.querier.Histogram(r.Context(), enc)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query histogram: %v", err), http.StatusInternalServerError)
		return
	}
	writeStruct(w, map[string]interface{}{"series": seriesPayload(hist)})
}

// rangesHandler returns the smallest and largest byte size of every series.
func (h *APIHandler) rangesHandler(w http.ResponseWriter, r *http.Request) {
	hist, err := h.querier.Histogram(r.Context(), nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query histogram: %v", err), http.StatusInternalServerError)
		return
	}

	ranges := hist.Ranges()
	var list []interface{}
	for _, p := range histogram.Pairs(hist) {
		mm, ok := ranges[p.Encryption][p.Category]
		if !ok {
			continue
		}
		list = append(list, map[string]interface{}{
			"encryption": p.Encryption.String(),
			"category":   p.Category.String(),
			"min":        mm.Min,
			"max":        mm.Max,
		})
	}
	writeStruct(w, map[string]interface{}{"ranges": list})
}

func seriesPayload(hist model.Histogram) []interface{} {
	var series []interface{}
	for _, p := range histogram.Pairs(hist) {
		bins := histogram.Bins(hist, p)
		list := make([]interface{}, 0, len(bins))
		for _, b := range bins {
			list = append(list, map[string]interface{}{"bytes": b.Bytes, "count": b.Count})
		}
		series = append(series, map[string]interface{}{
			"encryption": p.Encryption.String(),
			"category":   p.Category.String(),
			"packets":    hist.Total(p.Encryption, p.Category),
			"bins":       list,
		})
	}
	return series
}

func writeStruct(w http.ResponseWriter, payload map[string]interface{}) {
	s, err := structpb.NewStruct(payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to build response: %v", err), http.StatusInternalServerError)
		return
	}
	jsonBytes, err := protojson.Marshal(s)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
