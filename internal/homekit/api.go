package homekit

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hapcam/hapcam/internal/api"
	"github.com/hapcam/hapcam/internal/app"
	"github.com/hapcam/hapcam/pkg/hap"
	"github.com/hapcam/hapcam/pkg/hap/camera"
	"github.com/hapcam/hapcam/pkg/yaml"
)

var characteristics = []string{
	camera.TypeStreamingStatus,
	camera.TypeSupportedRTPConfiguration,
	camera.TypeSupportedVideoStreamConfiguration,
	camera.TypeSupportedAudioStreamConfiguration,
	camera.TypeSelectedStreamConfiguration,
	camera.TypeSetupEndpoints,
}

type streamItem struct {
	camera.StreamInfo
	Values map[string]string `json:"values"`
}

type writeRequest struct {
	Stream int    `json:"stream"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Conn   string `json:"conn"`
}

func apiHandler(w http.ResponseWriter, r *http.Request) {
	if cam == nil {
		http.Error(w, "homekit disabled", http.StatusNotFound)
		return
	}

	switch r.Method {
	case "GET":
		query := r.URL.Query()
		if !query.Has("stream") {
			listHandler(w)
			return
		}

		stream, err := strconv.Atoi(query.Get("stream"))
		if err != nil {
			api.Error(w, err, http.StatusBadRequest)
			return
		}

		value, err := cam.Read(stream, query.Get("type"))
		if err != nil {
			api.Error(w, err, errorCode(err))
			return
		}

		api.ResponseJSON(w, map[string]string{"value": base64.StdEncoding.EncodeToString(value)})

	case "PUT":
		var req writeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, err, http.StatusBadRequest)
			return
		}

		value, err := base64.StdEncoding.DecodeString(req.Value)
		if err != nil {
			api.Error(w, err, http.StatusBadRequest)
			return
		}

		if err = cam.Write(r.Context(), req.Stream, req.Type, value, req.Conn); err != nil {
			log.Warn().Err(err).Msgf("[homekit] write stream=%d type=%s", req.Stream, req.Type)
			api.Error(w, err, errorCode(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)

	case "DELETE":
		conn := r.URL.Query().Get("conn")
		if conn == "" {
			http.Error(w, "conn is required", http.StatusBadRequest)
			return
		}

		cam.HandleCloseConnection(conn)

		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func listHandler(w http.ResponseWriter) {
	infos, err := cam.Describe()
	if err != nil {
		api.Error(w, err, http.StatusInternalServerError)
		return
	}

	items := make([]streamItem, 0, len(infos))

	for _, info := range infos {
		item := streamItem{StreamInfo: info, Values: map[string]string{}}
		for _, t := range characteristics {
			value, _ := cam.Read(info.ID, t)
			item.Values[t] = base64.StdEncoding.EncodeToString(value)
		}
		items = append(items, item)
	}

	api.ResponseJSON(w, items)
}

func accessoriesHandler(w http.ResponseWriter, r *http.Request) {
	if cam == nil {
		http.Error(w, "homekit disabled", http.StatusNotFound)
		return
	}
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := hap.ServiceAccessoryInformation("hapcam", "Camera", config.Name, "0001", app.Version)

	acc, err := cam.Accessory(info)
	if err != nil {
		api.Error(w, err, http.StatusInternalServerError)
		return
	}

	api.ResponseJSON(w, hap.Accessories{Accessories: []*hap.Accessory{acc}})
}

func configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b, err := yaml.Encode(map[string]any{"homekit": config}, 2)
	if err != nil {
		api.Error(w, err, http.StatusInternalServerError)
		return
	}

	api.Response(w, b, "application/yaml")
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, camera.ErrNoStream):
		return http.StatusNotFound
	case errors.Is(err, camera.ErrUnknownCharacteristic), errors.Is(err, camera.ErrReadOnly):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
