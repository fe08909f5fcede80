package domain

// ExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Второе значение false означает, что тип не поддерживается как изображение товара.
func ExtensionFromMIME(mime string) (string, bool) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/gif":
		return ".gif", true
	case "image/webp":
		return ".webp", true
	default:
		return ".bin", false
	}
}
