package models

import "time"

// TokenPair — пара токенов, выдаваемая при регистрации/входе/обновлении.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к защищённым ресурсам;
//     клиент держит его только в памяти;
//   - RefreshToken — долгоживущий JWT, который уходит клиенту только в
//     HTTP-only cookie;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthResult — результат успешной регистрации, входа или обновления сессии.
type AuthResult struct {
	User   User
	Tokens TokenPair
}
