package api

type route struct {
	path        string
	operationID string
	summary     string
	params      []map[string]any
	responses   map[string]any
}

var routes = []route{
	{
		path:        "/healthz",
		operationID: "healthz",
		summary:     "Liveness and uptime",
		responses:   map[string]any{"200": map[string]any{"description": "Server is up"}},
	},
	{
		path:        "/runs",
		operationID: "listRuns",
		summary:     "Recorded scenario runs, newest first",
		params: []map[string]any{{
			"name": "limit", "in": "query", "required": false,
			"schema": map[string]any{"type": "integer", "minimum": 1, "maximum": maxListLimit},
		}},
		responses: map[string]any{
			"200": map[string]any{"description": "Run summaries"},
			"400": map[string]any{"description": "Bad limit"},
		},
	},
	{
		path:        "/runs/{runID}",
		operationID: "getRun",
		summary:     "One run with every recorded step",
		params: []map[string]any{{
			"name": "runID", "in": "path", "required": true,
			"schema": map[string]any{"type": "string", "format": "uuid"},
		}},
		responses: map[string]any{
			"200": map[string]any{"description": "Run with steps"},
			"404": map[string]any{"description": "Unknown run"},
		},
	},
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the trace API.
func buildOpenAPIDoc() map[string]any {
	paths := map[string]any{}
	for _, rt := range routes {
		op := map[string]any{
			"operationId": rt.operationID,
			"summary":     rt.summary,
			"tags":        []string{"traces"},
			"responses":   rt.responses,
		}
		if len(rt.params) > 0 {
			op["parameters"] = rt.params
		}
		paths[rt.path] = map[string]any{"get": op}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "capinvoke traces",
			"version": "1.0",
		},
		"paths": paths,
	}
}
