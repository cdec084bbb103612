package libmain

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"marine/plotter/charts"
	"marine/plotter/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Plotter</title>
  <meta charset="utf-8" />
  <link rel="stylesheet" href="bundle.css"/>
  <meta name="viewport" content="width=device-width, initial-scale=1.0, maximum-scale=1.0, minimum-scale=1.0, user-scalable=no, minimal-ui">
  <meta name="apple-mobile-web-app-capable" content="yes">
</head>
<body>
  <script type="text/javascript">
    window.INITIAL_SETTINGS = {{.}};
  </script>
  <div id="app"></div>
  <script src="bundle.js"></script>
</body>
</html>
`))

// Site is the HTTP surface of the plotter daemon.
type Site struct {
	ClientConfigFile string
	PublicPath       string
	Catalog          *charts.Catalog
	// Socket serves the renderer websocket, mounted on /ws.
	Socket http.Handler
}

func (s Site) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", s.index).Methods(http.MethodGet)
	if s.Catalog != nil {
		charts.Register(router, s.Catalog)
	}
	if s.Socket != nil {
		router.Handle("/ws", s.Socket)
	}
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.PublicPath)))
	return router
}

// index embeds the client configuration, read on every request.
func (s Site) index(w http.ResponseWriter, req *http.Request) {
	config := LoadClientConfig(s.ClientConfigFile)
	blob, err := json.Marshal(config)
	if err != nil {
		log.Error("client config: %v", err)
		blob = []byte("{}")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, template.JS(blob)); err != nil {
		log.Error("index page: %v", err)
	}
}
