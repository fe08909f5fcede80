package domain

import "time"

// ProductImage описывает изображение товара; сам бинарник лежит в S3 по ключу ObjectKey.
type ProductImage struct {
	ID          int64
	ProductID   int64
	ObjectKey   string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

func NewProductImage(productID int64, objectKey string, size int64, contentType string) *ProductImage {
	return &ProductImage{
		ProductID:   productID,
		ObjectKey:   objectKey,
		Size:        size,
		ContentType: contentType,
	}
}

// Image описывает объект, который загружается в S3
type Image struct {
	Bucket      string
	ObjectKey   string
	Bytes       []byte
	Size        int64
	ContentType string
}

func NewImage(bucket string, objectKey string, bytes []byte, size int64, contentType string) *Image {
	return &Image{
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       bytes,
		Size:        size,
		ContentType: contentType,
	}
}

// ObjectKeys возвращает ключи S3 для набора изображений.
func ObjectKeys(images []ProductImage) []string {
	keys := make([]string, len(images))
	for i, img := range images {
		keys[i] = img.ObjectKey
	}
	return keys
}
