// Package smtp предоставляет транспорт для отправки писем через SMTP.
package smtp

import "io"

// Client подмножество методов *smtp.Client, нужное для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}
