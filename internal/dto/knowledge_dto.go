package dto

type IngestRequest struct {
	FilePath string `json:"file_path" validate:"required"`
}

type IngestResponse struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

type FormatsResponse struct {
	Extensions []string `json:"extensions"`
}
