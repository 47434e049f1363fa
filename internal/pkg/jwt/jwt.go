package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoSubject    = errors.New("token has no subject")
)

// Claims JWT Claims结构
// user_id 缺失时回退到标准 sub
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Identity 返回调用方身份
func (c *Claims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// Verifier 校验 Bearer token
// 配置 RSA 公钥时只接受 RS256，否则使用 HS256 密钥
type Verifier struct {
	secret    []byte
	publicKey any
	method    string
}

// NewHMAC 创建 HS256 校验器
func NewHMAC(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), method: jwt.SigningMethodHS256.Alg()}
}

// NewRSA 从 PEM 公钥创建 RS256 校验器
func NewRSA(publicKeyPEM string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	return &Verifier{publicKey: key, method: jwt.SigningMethodRS256.Alg()}, nil
}

// NewVerifier 按配置选择校验方式，公钥优先
func NewVerifier(secret, publicKeyPEM string) (*Verifier, error) {
	if publicKeyPEM != "" {
		return NewRSA(publicKeyPEM)
	}
	if secret == "" {
		return nil, errors.New("jwt secret or public key is required")
	}
	return NewHMAC(secret), nil
}

// Validate 验证Token并返回Claims
func (v *Verifier) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if v.publicKey != nil {
			return v.publicKey, nil
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.method}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Identity() == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

// Issuer 签发 HS256 token，仅用于本地开发和测试
type Issuer struct {
	secret     []byte
	expiration time.Duration
}

// NewIssuer 创建签发器
func NewIssuer(secret string, expiration time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), expiration: expiration}
}

// GenerateToken 生成Access Token
func (i *Issuer) GenerateToken(userID, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}
