package service

import (
	"errors"

	"cinepasse-backoffice/internal/backend"
)

// Operator-facing messages.
const (
	MsgLoginFailed      = "Falha no login."
	MsgBadCredentials   = "Email ou senha incorretos."
	MsgUserNotFound     = "Usuário não encontrado."
	MsgWrongPassword    = "Senha incorreta."
	MsgTooManyRequests  = "Muitas tentativas. Tente mais tarde."
	MsgPermissionDenied = "Erro: Permissão negada. Verifique se você está logado com a conta Admin."
	MsgSessionRequired  = "Sessão expirada. Faça login novamente."
	MsgTitleRequired    = "O título é obrigatório."
	MsgUploadFailed     = "Erro ao enviar a imagem. O filme não foi salvo."
	MsgNotConfirmed     = "Confirme a ação para continuar."
	MsgTerminalStatus   = "Este ticket já foi processado."
	MsgNotFound         = "Registro não encontrado."
	MsgInvalidInput     = "Dados inválidos."
)

// AuthMessage maps a sign-in failure to the message shown on the login form.
func AuthMessage(err error) string {
	switch {
	case errors.Is(err, backend.ErrTooManyRequests):
		return MsgTooManyRequests
	case errors.Is(err, backend.ErrUserNotFound):
		return MsgUserNotFound
	case errors.Is(err, backend.ErrWrongPassword):
		return MsgWrongPassword
	case errors.Is(err, backend.ErrInvalidCredential):
		return MsgBadCredentials
	}
	return MsgLoginFailed
}
