package model

// AlphaResult alpha提取结果
type AlphaResult struct {
	MD5       string  `json:"md5"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Channels  int     `json:"channels"`
	Mask      string  `json:"mask"` // base64编码的PNG，前景为255
	Coverage  float64 `json:"coverage"`
	Timestamp int64   `json:"timestamp"`
}

// TrimapResult 三分图生成结果
type TrimapResult struct {
	MD5          string      `json:"md5"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	Source       string      `json:"source"` // mask, image
	Mode         string      `json:"mode"`
	ErodeKernel  int         `json:"erode_kernel,omitempty"`
	DilateKernel int         `json:"dilate_kernel,omitempty"`
	Stats        TrimapStats `json:"stats"`
	Trimap       string      `json:"trimap"` // base64编码的PNG
	Timestamp    int64       `json:"timestamp"`
}

// TrimapStats 三分图各取值的像素数
type TrimapStats struct {
	Background int `json:"background"`
	Eroded     int `json:"eroded"`
	Unknown    int `json:"unknown"`
	Foreground int `json:"foreground"`
}

// BatchReport 批量生成统计
type BatchReport struct {
	Total     int   `json:"total"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Duration  int64 `json:"duration_ms"`
}

// Response 通用成功响应
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
