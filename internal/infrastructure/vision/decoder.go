package vision

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

var (
	// ErrNoSeparator означает, что в строке нет запятой "<metadata>,<base64>".
	ErrNoSeparator = errors.New("image payload has no ',' separator")
	// ErrBadBase64 означает, что часть после запятой не является base64.
	ErrBadBase64 = errors.New("image payload is not valid base64")
	// ErrEmptyImage означает, что кодек не вернул пикселей.
	ErrEmptyImage = errors.New("decoded image is empty")
)

// UnwrapDataURL принимает строку в формате data URL ("data:image/jpeg;base64,....")
// и возвращает байты, закодированные после первой запятой.
func UnwrapDataURL(payload string) ([]byte, error) {
	i := strings.IndexByte(payload, ',')
	if i < 0 {
		return nil, ErrNoSeparator
	}
	blob := strings.TrimSpace(payload[i+1:])

	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		// некоторые кодировщики не дописывают паддинг
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(blob, "="))
	}
	if err != nil {
		return nil, errors.Wrapf(ErrBadBase64, "%v", err)
	}
	return data, nil
}

// Decoder декодирует файлы изображений из памяти в кадры. Кодек выбирается
// при сборке: по умолчанию пакеты image из Go, с тегом gocv используется
// OpenCV.
type Decoder struct{}

// NewDecoder создаёт декодер.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Unwrap реализует port.FrameDecoder.
func (d *Decoder) Unwrap(payload string) ([]byte, error) {
	return UnwrapDataURL(payload)
}

// Decode реализует port.FrameDecoder.
func (d *Decoder) Decode(data []byte) (*entity.Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	frame, err := decodePixels(data)
	if err != nil {
		return nil, err
	}
	if !frame.Valid() {
		return nil, ErrEmptyImage
	}
	return frame, nil
}

var _ port.FrameDecoder = (*Decoder)(nil)
