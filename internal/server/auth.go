/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UserHeader carries the caller identity when no bearer token is sent.
const UserHeader = "X-User-ID"

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	claims := tokenClaims{Sub: subject, Exp: exp.Unix()}
	b, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	payload := base64.RawURLEncoding.EncodeToString(b)
	signature := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return payload + "." + signature, nil
}

func verifyToken(secret, token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token format")
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid token payload")
	}
	sigB, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid token signature")
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", fmt.Errorf("bad signature")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", fmt.Errorf("bad claims")
	}
	if claims.Exp < time.Now().Unix() {
		return "", fmt.Errorf("token expired")
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Sub, nil
}

var errBadAuth = errors.New("invalid credentials")

// identify resolves the caller. A bearer token must verify; otherwise the
// X-User-ID header is trusted as set by the fronting proxy. Anonymous callers
// get "".
func (s *Server) identify(r *http.Request) (string, error) {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		const prefix = "bearer "
		if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
			return "", errBadAuth
		}
		sub, err := verifyToken(s.secret, strings.TrimSpace(auth[len(prefix):]))
		if err != nil {
			return "", fmt.Errorf("%w: %v", errBadAuth, err)
		}
		return sub, nil
	}
	return strings.TrimSpace(r.Header.Get(UserHeader)), nil
}

// withUser rejects anonymous or badly authenticated callers.
func (s *Server) withUser(next func(w http.ResponseWriter, r *http.Request, user string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.identify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if user == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
			return
		}
		next(w, r, user)
	}
}

// POST /api/auth/token {subject, ttl_seconds} → {token, expires_at}
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	if len(b) > 0 {
		if err := json.Unmarshal(b, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, errors.New("subject is required"))
		return
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
