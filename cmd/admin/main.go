package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"cvhub/internal/config"
	"cvhub/internal/database"
)

// 运维用的小工具：列出、查看、删除简历记录。
// 删除是不可逆操作，需要显式 --yes 确认。
func main() {
	var (
		list     = flag.Bool("list", false, "列出所有简历记录")
		showSlug = flag.String("show", "", "按 slug 查看一条记录")
		deleteBy = flag.String("delete", "", "按身份邮箱删除记录（不可逆）")
		confirm  = flag.Bool("yes", false, "确认执行删除")
		dbHost   = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort   = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName   = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser   = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass   = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode  = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	store := database.NewCVStore(db)
	ctx := context.Background()

	switch {
	case *list:
		listRecords(db)
	case strings.TrimSpace(*showSlug) != "":
		showRecord(ctx, store, strings.TrimSpace(*showSlug))
	case strings.TrimSpace(*deleteBy) != "":
		if !*confirm {
			log.Fatal("deletion is irreversible, rerun with --yes to confirm")
		}
		deleteRecord(ctx, store, strings.TrimSpace(*deleteBy))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func listRecords(db *gorm.DB) {
	var records []database.CVRecord
	if err := db.Order("id").Find(&records).Error; err != nil {
		log.Fatalf("list records: %v", err)
	}

	fmt.Printf("%-6s %-40s %-32s %-8s %-8s\n", "ID", "OWNER", "SLUG", "PUBLIC", "VIEWS")
	for _, r := range records {
		fmt.Printf("%-6d %-40s %-32s %-8t %-8d\n", r.ID, r.OwnerEmail, r.Slug, r.ConsentPublic, r.Views)
	}
	fmt.Printf("共 %d 条记录\n", len(records))
}

func showRecord(ctx context.Context, store *database.CVStore, slug string) {
	record, err := store.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("record with slug %q not found", slug)
		}
		log.Fatalf("find record: %v", err)
	}

	fmt.Printf("ID:          %d\n", record.ID)
	fmt.Printf("Owner:       %s\n", record.OwnerEmail)
	fmt.Printf("Slug:        %s\n", record.Slug)
	fmt.Printf("Public:      %t\n", record.ConsentPublic)
	fmt.Printf("Views:       %d\n", record.Views)
	fmt.Printf("ThemeColor:  %s\n", record.ThemeColor)
	fmt.Printf("PdfKey:      %s\n", record.PdfKey)
	fmt.Printf("UpdatedAt:   %s\n", record.UpdatedAt)

	var pretty map[string]any
	if len(record.Content) > 0 && json.Unmarshal(record.Content, &pretty) == nil {
		indented, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("Content:\n%s\n", indented)
	}
}

func deleteRecord(ctx context.Context, store *database.CVStore, ownerEmail string) {
	if err := store.Delete(ctx, ownerEmail); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("no record for owner %q", ownerEmail)
		}
		log.Fatalf("delete record: %v", err)
	}
	fmt.Printf("已删除 %s 名下的简历记录（对象存储中的文件需另行清理）\n", ownerEmail)
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
