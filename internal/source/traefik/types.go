package traefik

// Config is the subset of a Traefik dynamic configuration file that carries routers.
// Router entries are kept loose so a single malformed router does not reject the document.
type Config struct {
	HTTP *struct {
		Routers map[string]any `yaml:"routers"`
	} `yaml:"http"`
}
