package database

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"crawler-ofertas/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sql.DB
}

// New cria uma nova instância do banco de dados
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Println("Banco de dados inicializado com sucesso")
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		name TEXT,
		brand TEXT,
		sku TEXT,
		category TEXT,
		current_price REAL,
		original_price REAL,
		is_on_sale BOOLEAN DEFAULT 0,
		discount_percent REAL,
		image_url TEXT,
		active BOOLEAN DEFAULT 1,
		last_crawled DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		price REAL NOT NULL,
		original_price REAL,
		is_on_sale BOOLEAN DEFAULT 0,
		discount_percent REAL,
		crawled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (product_id) REFERENCES products(id)
	);

	CREATE TABLE IF NOT EXISTS crawl_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_type TEXT NOT NULL,
		status TEXT NOT NULL,
		category TEXT,
		total_products INTEGER DEFAULT 0,
		crawled_products INTEGER DEFAULT 0,
		new_products INTEGER DEFAULT 0,
		failed_products INTEGER DEFAULT 0,
		error_message TEXT,
		started_at DATETIME,
		completed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		title TEXT,
		message TEXT,
		old_price REAL,
		new_price REAL,
		change_percent REAL,
		is_read BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (product_id) REFERENCES products(id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	// Tentar adicionar colunas se não existirem (migração)
	// SQLite não suporta IF NOT EXISTS em ALTER TABLE, então ignoramos o erro
	_, _ = db.conn.Exec("ALTER TABLE products ADD COLUMN brand TEXT")
	_, _ = db.conn.Exec("ALTER TABLE products ADD COLUMN sku TEXT")

	return nil
}

const productColumns = "id, url, name, brand, sku, category, current_price, original_price, is_on_sale, discount_percent, image_url, active, last_crawled, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	var brand, sku, category, imageURL sql.NullString
	var originalPrice, discountPercent sql.NullFloat64
	var lastCrawled sql.NullTime
	err := row.Scan(&p.ID, &p.URL, &p.Name, &brand, &sku, &category, &p.CurrentPrice,
		&originalPrice, &p.IsOnSale, &discountPercent, &imageURL, &p.Active, &lastCrawled, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.Brand = brand.String
	p.SKU = sku.String
	p.Category = category.String
	p.ImageURL = imageURL.String
	if originalPrice.Valid {
		p.OriginalPrice = originalPrice.Float64
	}
	if discountPercent.Valid {
		p.DiscountPercent = discountPercent.Float64
	}
	if lastCrawled.Valid {
		p.LastCrawledAt = lastCrawled.Time
	}
	return p, nil
}

func (db *DB) queryProducts(query string, args ...interface{}) ([]models.Product, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetActiveProducts retorna os produtos ativos, opcionalmente filtrados por categoria
func (db *DB) GetActiveProducts(category string) ([]models.Product, error) {
	if category != "" && category != "all" {
		return db.queryProducts("SELECT "+productColumns+" FROM products WHERE active = 1 AND category = ?", category)
	}
	return db.queryProducts("SELECT " + productColumns + " FROM products WHERE active = 1")
}

// GetProductByID retorna um produto pelo ID
func (db *DB) GetProductByID(id int64) (*models.Product, error) {
	row := db.conn.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductsByIDs retorna os produtos ativos com os IDs informados
func (db *DB) GetProductsByIDs(ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return db.queryProducts("SELECT "+productColumns+" FROM products WHERE active = 1 AND id IN ("+placeholders+")", args...)
}

// GetProductsNotCrawledSince retorna produtos ativos sem crawl desde o instante informado
func (db *DB) GetProductsNotCrawledSince(since time.Time) ([]models.Product, error) {
	return db.queryProducts("SELECT "+productColumns+" FROM products WHERE active = 1 AND (last_crawled IS NULL OR last_crawled < ?)", since)
}

// CreateProduct insere um novo produto e retorna o ID gerado
func (db *DB) CreateProduct(p models.Product) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO products (url, name, brand, sku, category, current_price, original_price, is_on_sale, discount_percent, image_url, active, last_crawled) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)",
		p.URL, p.Name, p.Brand, p.SKU, p.Category, p.CurrentPrice, nullFloat(p.OriginalPrice),
		p.IsOnSale, p.DiscountPercent, p.ImageURL, p.LastCrawledAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateProductCrawl atualiza os campos de um produto após um crawl bem-sucedido
func (db *DB) UpdateProductCrawl(id int64, currentPrice, originalPrice float64, isOnSale bool, discountPercent float64, imageURL string) error {
	_, err := db.conn.Exec(
		"UPDATE products SET current_price = ?, original_price = ?, is_on_sale = ?, discount_percent = ?, image_url = ?, last_crawled = CURRENT_TIMESTAMP WHERE id = ?",
		currentPrice, nullFloat(originalPrice), isOnSale, discountPercent, imageURL, id,
	)
	return err
}

// DeactivateProduct desativa um produto (soft delete)
func (db *DB) DeactivateProduct(id int64) error {
	_, err := db.conn.Exec("UPDATE products SET active = 0 WHERE id = ?", id)
	return err
}

// AddPriceHistory registra um snapshot de preço para um produto
func (db *DB) AddPriceHistory(entry models.PriceHistoryEntry) error {
	_, err := db.conn.Exec(
		"INSERT INTO price_history (product_id, price, original_price, is_on_sale, discount_percent, crawled_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ProductID, entry.Price, nullFloat(entry.OriginalPrice), entry.IsOnSale, entry.DiscountPercent, entry.CrawledAt,
	)
	return err
}

// GetLatestPrice retorna o preço mais recente registrado no histórico de um produto
func (db *DB) GetLatestPrice(productID int64) (float64, error) {
	var price float64
	err := db.conn.QueryRow(
		"SELECT price FROM price_history WHERE product_id = ? ORDER BY crawled_at DESC, id DESC LIMIT 1",
		productID,
	).Scan(&price)
	if err != nil {
		return 0, err
	}
	return price, nil
}

// CreateJob insere um novo job de crawl e retorna o ID gerado
func (db *DB) CreateJob(job models.CrawlJob) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO crawl_jobs (job_type, status, category, started_at) VALUES (?, ?, ?, ?)",
		job.JobType, job.Status, job.Category, job.StartedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinalizeJob grava o resultado final de um job (status, contadores e timestamp)
func (db *DB) FinalizeJob(id int64, status string, total, crawled, newProducts, failed int, errorMessage string) error {
	_, err := db.conn.Exec(
		"UPDATE crawl_jobs SET status = ?, total_products = ?, crawled_products = ?, new_products = ?, failed_products = ?, error_message = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, total, crawled, newProducts, failed, errorMessage, id,
	)
	return err
}

// GetJobByID retorna um job pelo ID
func (db *DB) GetJobByID(id int64) (*models.CrawlJob, error) {
	row := db.conn.QueryRow(
		"SELECT id, job_type, status, category, total_products, crawled_products, new_products, failed_products, error_message, started_at, completed_at, created_at FROM crawl_jobs WHERE id = ?",
		id,
	)
	return scanJob(row)
}

// ListRecentJobs retorna os jobs mais recentes, limitado pelo parâmetro
func (db *DB) ListRecentJobs(limit int) ([]models.CrawlJob, error) {
	rows, err := db.conn.Query(
		"SELECT id, job_type, status, category, total_products, crawled_products, new_products, failed_products, error_message, started_at, completed_at, created_at FROM crawl_jobs ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*models.CrawlJob, error) {
	var job models.CrawlJob
	var category, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &job.JobType, &job.Status, &category, &job.TotalProducts,
		&job.CrawledProducts, &job.NewProducts, &job.FailedProducts, &errorMessage,
		&startedAt, &completedAt, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	job.Category = category.String
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	return &job, nil
}

// ResetRunningJobs força todos os jobs em "running" para "stopped".
// Usado na inicialização para recuperar jobs presos após uma queda do processo.
func (db *DB) ResetRunningJobs() (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE crawl_jobs SET status = ?, completed_at = CURRENT_TIMESTAMP, error_message = 'job interrompido por reinício do processo' WHERE status = ?",
		models.JobStatusStopped, models.JobStatusRunning,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateNotification insere uma notificação de mudança de preço
func (db *DB) CreateNotification(n models.Notification) error {
	_, err := db.conn.Exec(
		"INSERT INTO notifications (product_id, type, title, message, old_price, new_price, change_percent) VALUES (?, ?, ?, ?, ?, ?, ?)",
		n.ProductID, n.Type, n.Title, n.Message, n.OldPrice, n.NewPrice, n.ChangePercent,
	)
	return err
}

// ListUnreadNotifications retorna as notificações não lidas mais recentes
func (db *DB) ListUnreadNotifications(limit int) ([]models.Notification, error) {
	rows, err := db.conn.Query(
		"SELECT id, product_id, type, title, message, old_price, new_price, change_percent, is_read, created_at FROM notifications WHERE is_read = 0 ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var title, message sql.NullString
		err := rows.Scan(&n.ID, &n.ProductID, &n.Type, &title, &message, &n.OldPrice, &n.NewPrice, &n.ChangePercent, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		n.Title = title.String
		n.Message = message.String
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// GetSettings retorna todas as configurações do crawler como um mapa chave/valor
func (db *DB) GetSettings() (map[string]string, error) {
	rows, err := db.conn.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// SetSetting grava (ou substitui) uma configuração do crawler
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}

func nullFloat(v float64) sql.NullFloat64 {
	if v <= 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
