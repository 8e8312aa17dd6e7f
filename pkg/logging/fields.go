package logging

import (
	"log/slog"

	"chatrelay/internal/core/domain"
)

// Domain identifiers

func Room(name string) slog.Attr {
	return slog.String("room", name)
}

func User(name string) slog.Attr {
	return slog.String("username", name)
}

func Conn(id domain.ConnID) slog.Attr {
	return slog.String("conn_id", string(id))
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
