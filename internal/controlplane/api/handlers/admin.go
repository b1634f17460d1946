package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docspp/cluster/internal/namenode"
)

// AdminHandler exposes read-only introspection over the Name Node's
// registries: Storage Nodes, connected clients, and the file table. It
// backs the admin API's operational visibility into cluster state
// (spec.md has no wire verb for this; it exists purely for operators).
type AdminHandler struct {
	coordinator *namenode.Coordinator
}

// NewAdminHandler creates an AdminHandler over coordinator.
func NewAdminHandler(coordinator *namenode.Coordinator) *AdminHandler {
	return &AdminHandler{coordinator: coordinator}
}

type storageNodeView struct {
	ID            int       `json:"id"`
	Address       string    `json:"address"`
	ClientPort    int       `json:"client_port"`
	NNPort        int       `json:"nn_port"`
	SSPort        int       `json:"ss_port"`
	FileCount     int       `json:"file_count"`
	Alive         bool      `json:"alive"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// ListStorageNodes handles GET /api/v1/storage-nodes.
func (h *AdminHandler) ListStorageNodes(w http.ResponseWriter, r *http.Request) {
	sns := h.coordinator.SNRegistry().List()
	out := make([]storageNodeView, 0, len(sns))
	for _, sn := range sns {
		out = append(out, storageNodeView{
			ID:            sn.ID,
			Address:       sn.Address,
			ClientPort:    sn.ClientPort,
			NNPort:        sn.NNPort,
			SSPort:        sn.SSPort,
			FileCount:     sn.FileCount,
			Alive:         sn.Alive,
			LastHeartbeat: sn.LastHeartbeat,
		})
	}
	WriteJSONOK(w, out)
}

type clientView struct {
	Holder    string    `json:"holder"`
	Username  string    `json:"username"`
	PeerAddr  string    `json:"peer_addr"`
	StartTime time.Time `json:"start_time"`
}

// ListClients handles GET /api/v1/clients.
func (h *AdminHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients := h.coordinator.ClientRegistry().List()
	out := make([]clientView, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientView{
			Holder:    c.Holder,
			Username:  c.Username,
			PeerAddr:  c.PeerAddr,
			StartTime: c.StartTime,
		})
	}
	WriteJSONOK(w, out)
}

type fileView struct {
	Path          string    `json:"path"`
	Owner         string    `json:"owner"`
	SNID          int       `json:"sn_id"`
	Size          int64     `json:"size"`
	WordCount     int       `json:"word_count"`
	SentenceCount int       `json:"sentence_count"`
	IsDirectory   bool      `json:"is_directory"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
}

func toFileView(m *namenode.FileMeta) fileView {
	return fileView{
		Path:          m.Path,
		Owner:         m.Owner,
		SNID:          m.SNID,
		Size:          m.Size,
		WordCount:     m.WordCount,
		SentenceCount: m.SentenceCount,
		IsDirectory:   m.IsDirectory,
		CreatedAt:     m.CreatedAt,
		ModifiedAt:    m.ModifiedAt,
	}
}

// ListFiles handles GET /api/v1/files.
func (h *AdminHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files := h.coordinator.FileTable().List()
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		out = append(out, toFileView(f))
	}
	WriteJSONOK(w, out)
}

// GetFile handles GET /api/v1/files/*, where the wildcard is the file's
// logical path (which itself may contain slashes).
func (h *AdminHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	meta, err := h.coordinator.Info(path)
	if err != nil {
		HandleClusterError(w, err)
		return
	}
	WriteJSONOK(w, toFileView(meta))
}
