// Package request разбирает тело и параметры HTTP-запросов.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
)

// ErrBadRequest тело или параметры запроса не удалось разобрать.
var ErrBadRequest = errors.New("invalid request")

const maxBodyBytes = 1 << 20

// Decode читает JSON-тело запроса в dst. Пустое тело считается ошибкой.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", ErrBadRequest)
		}
		return fmt.Errorf("%w: invalid request body", ErrBadRequest)
	}
	return nil
}

// IDParam возвращает положительный целочисленный параметр пути name.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return id, nil
}

// IntQuery возвращает целочисленный параметр строки запроса или def, если он не задан.
func IntQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return n, nil
}

// BoolQuery возвращает логический параметр строки запроса; отсутствие означает false.
func BoolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return v, nil
}

// Message текст ошибки разбора без префикса.
func Message(err error) string {
	msg := err.Error()
	prefix := ErrBadRequest.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
