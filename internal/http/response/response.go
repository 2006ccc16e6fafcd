// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON-ответов HTTP-обработчиков и сопоставления ошибок
// предметной области со статусами HTTP.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// Response описывает стандартную структуру JSON-ответа сервера.
// Поле Status статус запроса ("OK" или "Error").
// Поле Error текст ошибки (при неуспехе).
// Поле Data данные ответа или подробности ошибки.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человекочитаемый текст, объединенный через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "alphanum":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// JSON отправляет resp с кодом status.
func JSON(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// OK отправляет 200 с данными.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, StatusOKWithData(data))
}

// Created отправляет 201 с данными.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusCreated, StatusOKWithData(data))
}

// BadRequest отправляет 400 с сообщением.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	JSON(w, r, http.StatusBadRequest, Error(msg))
}

// Invalid отправляет 422 с описанием ошибок валидации запроса.
func Invalid(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		JSON(w, r, http.StatusUnprocessableEntity, ValidationError(verrs))
		return
	}
	JSON(w, r, http.StatusBadRequest, Error(err.Error()))
}

// StatusFor сопоставляет ошибку предметной области со статусом HTTP.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrUserExists),
		errors.Is(err, models.ErrTrialAlreadyUsed),
		errors.Is(err, models.ErrPackageInUse):
		return http.StatusConflict
	case errors.Is(err, models.ErrNoActiveSubscription), errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Fail отправляет ответ об ошибке. Внутренние ошибки не раскрываются клиенту.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := Error(publicMessage(err, status))

	var qe *models.QuotaExceededError
	if errors.As(err, &qe) {
		resp.Data = map[string]int{"used": qe.Used, "limit": qe.Limit}
	}
	JSON(w, r, status, resp)
}

func publicMessage(err error, status int) string {
	var (
		ve *models.ValidationError
		te *models.TransitionError
		qe *models.QuotaExceededError
		ue *models.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &te):
		return te.Error()
	case errors.As(err, &qe):
		return qe.Error()
	case errors.As(err, &ue):
		return ue.Service + " service is unavailable"
	case status == http.StatusForbidden && errors.Is(err, models.ErrForbidden):
		return forbiddenMessage(err)
	case status == http.StatusInternalServerError:
		return "internal error"
	}
	for _, known := range []error{
		models.ErrNotFound, models.ErrUserExists, models.ErrTrialAlreadyUsed, models.ErrPackageInUse,
		models.ErrNoActiveSubscription, models.ErrInvalidCredentials,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return http.StatusText(status)
}

// forbiddenMessage оставляет пояснение после sentinel-ошибки ("forbidden: <причина>").
func forbiddenMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, models.ErrForbidden.Error()); i >= 0 {
		return msg[i:]
	}
	return models.ErrForbidden.Error()
}
