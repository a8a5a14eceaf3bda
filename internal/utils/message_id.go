package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const eventIdAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MessageDocumentID derives the index document id of a message from where it
// lives on the server. Same inputs, same id; no clock involved.
func MessageDocumentID(account, folder string, serverSeq uint32) string {
	h := sha256.New()
	h.Write([]byte(account))
	h.Write([]byte{0})
	h.Write([]byte(folder))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(uint64(serverSeq), 10)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// GenerateEventID returns a short random id for bus events.
func GenerateEventID(prefix string) string {
	id, err := gonanoid.Generate(eventIdAlphabet, 16)
	if err != nil {
		panic(err)
	}
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
