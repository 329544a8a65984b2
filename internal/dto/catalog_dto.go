package dto

type IngestRequest struct {
	Path   string `json:"path" validate:"required"`
	Source string `json:"source"`
}

type IngestAcceptedResponse struct {
	JobId  string `json:"job_id"`
	Status string `json:"status"`
	Source string `json:"source"`
}
