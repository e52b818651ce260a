package api

import (
	"errors"
	"strings"
)

const (
	LocaleEnglish    = "en"
	LocalePortuguese = "pt-BR"
	LocaleSpanish    = "es"
)

type genericMessages struct {
	unexpected string
	network    string
	session    string
}

var messagesByLocale = map[string]genericMessages{
	LocaleEnglish: {
		unexpected: "Something went wrong. Please try again.",
		network:    "Could not reach the server. Check your connection and try again.",
		session:    "Your session has expired. Please sign in again.",
	},
	LocalePortuguese: {
		unexpected: "Algo deu errado. Tente novamente.",
		network:    "Não foi possível conectar ao servidor. Verifique sua conexão e tente novamente.",
		session:    "Sua sessão expirou. Faça login novamente.",
	},
	LocaleSpanish: {
		unexpected: "Algo salió mal. Inténtalo de nuevo.",
		network:    "No se pudo conectar con el servidor. Revisa tu conexión e inténtalo de nuevo.",
		session:    "Tu sesión ha expirado. Inicia sesión de nuevo.",
	},
}

// UserMessage returns a message fit for an error banner: the backend's own
// message when it sent one, otherwise a generic string in locale. Unknown
// locales fall back to the language part, then to English.
func UserMessage(err error, locale string) string {
	if err == nil {
		return ""
	}
	messages := lookupMessages(locale)

	if errors.Is(err, ErrReauthenticationRequired) {
		return messages.session
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return messages.unexpected
	}
	return messages.network
}

func lookupMessages(locale string) genericMessages {
	if m, ok := messagesByLocale[locale]; ok {
		return m
	}
	lang, _, _ := strings.Cut(locale, "-")
	for key, m := range messagesByLocale {
		if strings.EqualFold(strings.SplitN(key, "-", 2)[0], lang) {
			return m
		}
	}
	return messagesByLocale[LocaleEnglish]
}
