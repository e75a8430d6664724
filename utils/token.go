package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type JwtCustomClaim struct {
	IdSpm    string `json:"id_spm"`
	Rol      string `json:"rol"`
	Posicion string `json:"posicion"`
	jwt.StandardClaims
}

var jwtSecret = []byte(getJwtSecret())

func getJwtSecret() string {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return "SPM-Secret"
	}
	return secret
}

// TokenLifespanHours is shared by the JWT expiry and the session cookie.
func TokenLifespanHours() int {
	lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		// sessions last a week unless configured otherwise
		return 168
	}
	return lifespan
}

func JwtGenerate(idSpm string, rol string, posicion string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		IdSpm:    idSpm,
		Rol:      rol,
		Posicion: posicion,
		StandardClaims: jwt.StandardClaims{
			Subject:   idSpm,
			ExpiresAt: time.Now().Add(time.Hour * time.Duration(TokenLifespanHours())).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})

	token, err := t.SignedString(jwtSecret)
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret, nil
	})
}
