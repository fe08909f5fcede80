package usecase

import (
	"path"
	"strings"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/google/uuid"
)

const (
	imageKeyPrefix   = "product_images"
	imageKeyTimeFmt  = "20060102150405"
	imageTokenLength = 10
	defaultImageBase = "image"
)

// FilenameGenerator строит уникальный ключ S3 для загружаемого изображения:
// product_images/{время}_{токен}_{имя}{расширение}.
type FilenameGenerator struct {
	now   func() time.Time
	token func() string
}

func NewFilenameGenerator() *FilenameGenerator {
	return &FilenameGenerator{
		now: time.Now,
		token: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:imageTokenLength]
		},
	}
}

// NewFilenameGeneratorWith создаёт генератор с заданными источниками времени и токенов.
func NewFilenameGeneratorWith(now func() time.Time, token func() string) *FilenameGenerator {
	return &FilenameGenerator{now: now, token: token}
}

// Generate возвращает ключ для исходного имени файла. mimeType используется, если у имени нет
// расширения или оно содержит что-то кроме латинских букв и цифр.
func (g *FilenameGenerator) Generate(originalName, mimeType string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(originalName), "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	// Расширение с посторонними символами считается частью имени
	if !validExt(ext) {
		base, ext = strings.TrimRight(name, "."), ""
	}
	base = sanitizeBase(base)
	if base == "" {
		base = defaultImageBase
	}
	if ext == "" {
		ext, _ = domain.ExtensionFromMIME(mimeType)
	}

	return imageKeyPrefix + "/" + g.now().UTC().Format(imageKeyTimeFmt) + "_" + g.token() + "_" + base + strings.ToLower(ext)
}

// sanitizeBase заменяет пробелы и управляющие символы, чтобы ключ оставался валидным путём.
func sanitizeBase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case r == ' ', r == '?', r == '#', r == '%':
			return '_'
		default:
			return r
		}
	}, s)
}

// validExt допускает только точку и латинские буквы или цифры.
func validExt(ext string) bool {
	if len(ext) < 2 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
