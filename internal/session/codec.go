package session

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/gorilla/securecookie"
)

const codecName = "session"

// Codec は保存するセッション値を署名・暗号化します。
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodec は secret から署名鍵と暗号鍵を導出してコーデックを作成します。
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session: encryption secret is empty")
	}
	hashKey := sha256.Sum256([]byte("hash:" + secret))
	blockKey := sha256.Sum256([]byte("block:" + secret))

	sc := securecookie.New(hashKey[:], blockKey[:])
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(ttl.Seconds()))
	return &Codec{sc: sc}, nil
}

func (c *Codec) Seal(data Data) (string, error) {
	return c.sc.Encode(codecName, data)
}

func (c *Codec) Open(value string) (*Data, error) {
	var data Data
	if err := c.sc.Decode(codecName, value, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
