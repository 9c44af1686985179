package models

// ErrorResponse - стандартное тело ответа об ошибке.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse - тело ответа для операций без результата.
type MessageResponse struct {
	Message string `json:"message"`
}

// ImageResponse - ответ эндпоинта получения ссылки на иллюстрацию.
type ImageResponse struct {
	Image string `json:"image"`
}

// RenameRequest - тело запроса переименования.
type RenameRequest struct {
	Name string `json:"name"`
}
