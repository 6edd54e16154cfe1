package main

import (
	"fmt"
	"os"
	"strings"

	"library-management/config"
	"library-management/library"
)

type seedBook struct {
	title    string
	author   string
	category string
	copies   int
}

type seedUser struct {
	username string
	password string
	admin    bool
	subType  library.SubscriptionType
}

func main() {
	configPath := "library.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Start from a clean slate.
	fmt.Println("Removing existing data files...")
	for _, path := range []string{cfg.Data.Path, cfg.Data.Path + "-shm", cfg.Data.Path + "-wal"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: could not remove %s: %v\n", path, err)
		}
	}

	var store library.Store
	switch cfg.Data.Backend {
	case "sqlite":
		st, err := library.NewSQLiteStore(cfg.Data.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		store = st
	default:
		store = library.NewJSONStore(cfg.Data.Path)
	}

	svc, err := library.NewLibraryService(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating service: %v\n", err)
		os.Exit(1)
	}

	users := []seedUser{
		{"admin", "admin", true, library.SubscriptionVIP},
		{"alice", "alice", false, library.SubscriptionPremium},
		{"bob", "bob", false, library.SubscriptionBasic},
	}

	books := []seedBook{
		{"1984", "George Orwell", "Fiction", 3},
		{"Animal Farm", "George Orwell", "Fiction", 2},
		{"The Diary of a Young Girl", "Anne Frank", "Biography", 1},
		{"The Art of War", "Sun Tzu", "Philosophy", 2},
		{"The Fellowship of the Ring", "J.R.R. Tolkien", "Fantasy", 2},
		{"The Two Towers", "J.R.R. Tolkien", "Fantasy", 2},
		{"The Return of the King", "J.R.R. Tolkien", "Fantasy", 2},
		{"Harry Potter and the Philosopher's Stone", "J.K. Rowling", "Fantasy", 4},
		{"Romeo and Juliet", "William Shakespeare", "Drama", 1},
		{"The Three Musketeers", "Alexandre Dumas", "Adventure", 2},
	}

	fmt.Println("Seeding users...")
	for _, u := range users {
		created, err := svc.CreateUser(u.username, u.password, u.admin, u.subType, 365)
		if err != nil {
			fmt.Printf("  %s: skipped (%v)\n", u.username, err)
			continue
		}
		fmt.Printf("  %s: created (%s, %s)\n", created.Username, created.Role, created.Subscription.Type)
	}

	fmt.Println("\nSeeding books...")
	successCount := 0
	errorCount := 0
	for _, b := range books {
		fmt.Printf("  %s by %s... ", b.title, b.author)
		book, err := svc.AddBook(b.title, b.author, b.category, b.copies)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("OK (ID: %s)\n", book.ID)
		successCount++
	}

	fmt.Printf("\nSeed complete!\n")
	fmt.Printf("Books added: %d\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Println("\nCatalog:")
		fmt.Printf("%-36s %-40s %-25s %s\n", "ID", "Title", "Author", "Copies")
		fmt.Println(strings.Repeat("-", 110))
		for _, book := range svc.SearchBooks("", "", "") {
			fmt.Printf("%-36s %-40s %-25s %d\n",
				book.ID, truncateString(book.Title, 40), truncateString(book.Author, 25), len(book.Copies))
		}
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
