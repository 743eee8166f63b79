package hello

const (
	// Message is the fixed greeting returned by GET /api/hello.
	Message = "Hello from Spring Boot!"
	// StatusSuccess marks a successful greeting.
	StatusSuccess = "success"
)

// Data models the response payload for the hello endpoint.
type Data struct {
	Message string `json:"message" doc:"Greeting message" example:"Hello from Spring Boot!"`
	Status  string `json:"status" doc:"Outcome of the request" example:"success"`
}

// GetOutput is the response for GET /hello.
type GetOutput struct {
	Body Data
}
