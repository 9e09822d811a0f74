package models

// AnalysisRequest represents a JSON request to analyze a remote test-chart image.
// Crop values are percentages (0-100) as entered by the user.
type AnalysisRequest struct {
	URL                string   `json:"url" binding:"required,url"`
	CropTop            float64  `json:"crop_top" form:"crop_top"`
	CropBottom         float64  `json:"crop_bottom" form:"crop_bottom"`
	CropLeft           float64  `json:"crop_left" form:"crop_left"`
	CropRight          float64  `json:"crop_right" form:"crop_right"`
	HorizontalSections int      `json:"horizontal_sections" form:"horizontal_sections"`
	Methods            []string `json:"methods,omitempty" form:"methods"`
}

// UploadRequest carries the form fields sent alongside a multipart image upload
type UploadRequest struct {
	CropTop            float64 `form:"crop_top"`
	CropBottom         float64 `form:"crop_bottom"`
	CropLeft           float64 `form:"crop_left"`
	CropRight          float64 `form:"crop_right"`
	HorizontalSections int     `form:"horizontal_sections"`
	Methods            string  `form:"methods"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// ImageMetadata contains metadata about a decoded image
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format,omitempty"`
}
