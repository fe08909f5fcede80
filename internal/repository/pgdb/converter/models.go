package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL.
// Price читается как text, чтобы не терять точность NUMERIC.
type ProductModel struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Price       string     `db:"price"`
	Description string     `db:"description"`
	OwnerID     *int64     `db:"owner_id"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// ProductImageModel представляет запись таблицы product_images в PostgreSQL.
type ProductImageModel struct {
	ID          int64     `db:"id"`
	ProductID   int64     `db:"product_id"`
	ObjectKey   string    `db:"object_key"`
	Size        int64     `db:"size"`
	ContentType string    `db:"content_type"`
	CreatedAt   time.Time `db:"created_at"`
}

// UserModel представляет запись таблицы users в PostgreSQL.
type UserModel struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsStaff      bool      `db:"is_staff"`
	CreatedAt    time.Time `db:"created_at"`
}
