package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// ContactCipher 对联系方式（手机号/邮箱）做确定性对称加密。
// AES-256-CTR，密钥由配置密钥经SHA-256派生；IV由HMAC(key, plaintext)派生，
// 因此同一明文总是产出同一密文，密文列可以直接建索引查重。
type ContactCipher struct {
	key []byte
}

// NewContactCipher 创建加密器，secret不能为空
func NewContactCipher(secret string) (*ContactCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("加密密钥不能为空")
	}
	key := sha256.Sum256([]byte(secret))
	return &ContactCipher{key: key[:]}, nil
}

// Encrypt 加密明文并返回base64编码的 iv||ciphertext。
// 空明文原样返回空串。
func (c *ContactCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("初始化AES失败: %w", err)
	}

	iv := c.deriveIV(plaintext)
	stream := cipher.NewCTR(block, iv)

	out := make([]byte, aes.BlockSize+len(plaintext))
	copy(out[:aes.BlockSize], iv)
	stream.XORKeyStream(out[aes.BlockSize:], []byte(plaintext))

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt 解密base64编码的密文。空密文原样返回空串。
func (c *ContactCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("密文不是合法的base64: %w", err)
	}
	if len(raw) < aes.BlockSize {
		return "", fmt.Errorf("密文长度不足")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("初始化AES失败: %w", err)
	}

	iv := raw[:aes.BlockSize]
	stream := cipher.NewCTR(block, iv)

	plaintext := make([]byte, len(raw)-aes.BlockSize)
	stream.XORKeyStream(plaintext, raw[aes.BlockSize:])

	return string(plaintext), nil
}

// deriveIV 从明文确定性地派生IV，保证加密结果可复现
func (c *ContactCipher) deriveIV(plaintext string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(plaintext))
	return mac.Sum(nil)[:aes.BlockSize]
}
