package api

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/gaspardpetit/callrelay/internal/logx"
)

func jsonResponse(desc string, schema *openapi3.Schema) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(desc).WithJSONSchema(schema)}
}

func errorResponse(desc string) *openapi3.ResponseRef {
	errSchema := openapi3.NewObjectSchema().WithProperty("error", openapi3.NewStringSchema())
	return jsonResponse(desc, errSchema)
}

func messageSchema(field string) *openapi3.Schema {
	return openapi3.NewObjectSchema().WithProperty(field, openapi3.NewStringSchema())
}

// Document describes the HTTP surface of callrelay.
func Document(version string) *openapi3.T {
	callSchema := openapi3.NewObjectSchema().
		WithProperty("call_sid", openapi3.NewStringSchema()).
		WithProperty("to", openapi3.NewStringSchema()).
		WithProperty("from", openapi3.NewStringSchema()).
		WithProperty("status", openapi3.NewStringSchema().WithEnum(
			"queued", "initiated", "ringing", "answered", "in-progress",
			"completed", "failed", "busy", "no-answer", "canceled")).
		WithProperty("created_at", openapi3.NewDateTimeSchema()).
		WithProperty("updated_at", openapi3.NewDateTimeSchema())

	callReq := openapi3.NewObjectSchema().WithProperty("to", openapi3.NewStringSchema())
	callReq.Required = []string{"to"}

	statusForm := openapi3.NewObjectSchema().
		WithProperty("CallSid", openapi3.NewStringSchema()).
		WithProperty("CallStatus", openapi3.NewStringSchema())

	twiml := openapi3.NewResponse().WithDescription("TwiML connecting the call to the media stream").
		WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"application/xml"}))

	paths := openapi3.NewPaths()
	paths.Set("/outbound-call", &openapi3.PathItem{Post: &openapi3.Operation{
		OperationID: "placeCall",
		Summary:     "Queue an outbound call",
		RequestBody: &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(callReq)},
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(200, jsonResponse("Call queued", messageSchema("message"))),
			openapi3.WithStatus(400, errorResponse("Missing number or domain")),
			openapi3.WithStatus(503, errorResponse("Draining or saturated")),
		),
	}})
	paths.Set("/outbound-twiml", &openapi3.PathItem{Post: &openapi3.Operation{
		OperationID: "outboundTwiml",
		Summary:     "TwiML for answered outbound calls",
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(200, &openapi3.ResponseRef{Value: twiml}),
			openapi3.WithStatus(400, errorResponse("Domain not configured")),
		),
	}})
	paths.Set("/call-status", &openapi3.PathItem{Post: &openapi3.Operation{
		OperationID: "callStatus",
		Summary:     "Twilio status callback",
		RequestBody: &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
			WithContent(openapi3.NewContentWithFormDataSchema(statusForm))},
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(200, jsonResponse("Status recorded", messageSchema("status"))),
		),
	}})
	paths.Set("/media-stream", &openapi3.PathItem{Get: &openapi3.Operation{
		OperationID: "mediaStream",
		Summary:     "Twilio Media Streams websocket",
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(101, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Switching protocols")}),
			openapi3.WithStatus(503, errorResponse("Draining")),
		),
	}})
	paths.Set("/api/calls/{call_sid}", &openapi3.PathItem{Get: &openapi3.Operation{
		OperationID: "getCall",
		Summary:     "Look up a call",
		Parameters: openapi3.Parameters{
			{Value: openapi3.NewPathParameter("call_sid").WithSchema(openapi3.NewStringSchema())},
		},
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(200, jsonResponse("Call record", callSchema)),
			openapi3.WithStatus(404, errorResponse("Unknown call")),
		),
	}})
	paths.Set("/api/state", &openapi3.PathItem{Get: &openapi3.Operation{
		OperationID: "getState",
		Summary:     "Relay and host state",
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(200, jsonResponse("State", openapi3.NewObjectSchema())),
		),
	}})
	paths.Set("/healthz", &openapi3.PathItem{Get: &openapi3.Operation{
		OperationID: "getHealthz",
		Summary:     "Liveness",
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(200, jsonResponse("OK", messageSchema("status"))),
		),
	}})

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: "callrelay API", Version: version},
		Paths:   paths,
	}
}

// OpenAPIHandler serves the document as JSON.
func OpenAPIHandler(version string) http.HandlerFunc {
	b, err := json.Marshal(Document(version))
	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			logx.Log.Error().Err(err).Msg("encode openapi document")
			writeError(w, http.StatusInternalServerError, "openapi document unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}
}
