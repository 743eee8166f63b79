package hello

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	applog "github.com/tapeshchavle/cicd/internal/platform/logging"
)

// OperationID names the greeting operation in the OpenAPI document.
const OperationID = "get-hello"

// Register wires hello routes into the provided API router.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: OperationID,
		Method:      http.MethodGet,
		Path:        "/hello",
		Summary:     "Get a greeting",
		Description: "Returns a fixed greeting. Query parameters and request bodies are ignored.",
		Tags:        []string{"Hello"},
	}, getHandler)
}

func getHandler(ctx context.Context, _ *struct{}) (*GetOutput, error) {
	applog.LogInfo(ctx, "hello get", zap.String("path", "/api/hello"))
	return &GetOutput{Body: Data{Message: Message, Status: StatusSuccess}}, nil
}
