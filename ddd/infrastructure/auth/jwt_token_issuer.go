package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"transcode-orchestrator/ddd/domain/gateway"
)

// ErrInvalidRunnerToken runner token 签名或声明不合法
var ErrInvalidRunnerToken = errors.New("invalid runner token")

// JWTTokenIssuer 使用 HS256 签发 runner token，subject 为 runner UUID。
// token 不设过期时间，注销 runner 后由数据库查询失效。
type JWTTokenIssuer struct {
	secret []byte
	issuer string
}

// NewJWTTokenIssuer 创建签发器
func NewJWTTokenIssuer(secret, issuer string) (*JWTTokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTTokenIssuer{secret: []byte(secret), issuer: issuer}, nil
}

var _ gateway.RunnerTokenIssuer = (*JWTTokenIssuer)(nil)

func (i *JWTTokenIssuer) Issue(runnerUUID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:  i.issuer,
		Subject: runnerUUID,
		// 同一 runner 重复注册时保证 token 不同
		ID: uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign runner token: %w", err)
	}
	return signed, nil
}

func (i *JWTTokenIssuer) Parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidRunnerToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidRunnerToken
	}
	return claims.Subject, nil
}
