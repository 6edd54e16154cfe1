package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-management/config"
	"library-management/library"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "library",
		Short:         "Library management system",
		Long:          "Interactive shell for managing users, books, loans and reservations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := newService(configPath)
			if err != nil {
				return err
			}
			defer closeStore()
			return runShell(svc)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "library.yaml", "path to the yaml config file")

	cmd.AddCommand(statsCmd(&configPath))
	return cmd
}

// statsCmd prints the admin statistics without entering the shell.
func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print library statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := newService(*configPath)
			if err != nil {
				return err
			}
			defer closeStore()
			printStatistics(svc.Statistics())
			return nil
		},
	}
}

// newService wires the store, verifier and logger from configuration.
func newService(configPath string) (*library.LibraryService, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log.Level)

	var store library.Store
	closeStore := func() {}
	switch cfg.Data.Backend {
	case "sqlite":
		st, err := library.NewSQLiteStore(cfg.Data.Path)
		if err != nil {
			return nil, nil, err
		}
		store = st
		closeStore = func() { st.Close() }
	default:
		store = library.NewJSONStore(cfg.Data.Path)
	}

	opts := []library.Option{library.WithLogger(logger)}
	if cfg.Auth.Verifier == "bcrypt" {
		opts = append(opts, library.WithVerifier(library.BcryptVerifier{}))
	}

	svc, err := library.NewLibraryService(store, opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// readPassword reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

func runShell(svc *library.LibraryService) error {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Welcome to the Library Management System!")

	user := login(scanner, svc)
	if user == nil {
		return nil
	}

	fmt.Printf("\nLogged in as %s (%s, %s subscription)\n", user.Username, user.Role, user.Subscription.Type)
	printHelp(user.IsAdmin())

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return nil
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "search":
			handleSearch(scanner, svc)
		case "borrow":
			handleBorrow(scanner, svc, user)
		case "return":
			handleReturn(scanner, svc)
		case "my loans":
			handleMyLoans(svc, user)
		case "reserve":
			handleReserve(scanner, svc, user)
		case "my reservations":
			handleMyReservations(svc, user)
		case "cancel reservation":
			handleCancelReservation(scanner, svc)
		case "notifications":
			handleNotifications(svc, user)
		case "rate":
			handleRate(scanner, svc, user)
		case "reviews":
			handleReviews(scanner, svc)
		case "popular":
			handlePopular(svc)
		case "add book":
			adminOnly(user, func() { handleAddBook(scanner, svc) })
		case "add copies":
			adminOnly(user, func() { handleAddCopies(scanner, svc) })
		case "remove book":
			adminOnly(user, func() { handleRemoveBook(scanner, svc) })
		case "set copy status":
			adminOnly(user, func() { handleSetCopyStatus(scanner, svc) })
		case "create user":
			adminOnly(user, func() { handleCreateUser(scanner, svc) })
		case "change subscription":
			adminOnly(user, func() { handleChangeSubscription(scanner, svc) })
		case "settle penalty":
			adminOnly(user, func() { handleSettlePenalty(scanner, svc) })
		case "notify":
			adminOnly(user, func() { handleNotify(scanner, svc) })
		case "history":
			adminOnly(user, func() { handleHistory(scanner, svc) })
		case "stats":
			adminOnly(user, func() { printStatistics(svc.Statistics()) })
		case "help":
			printHelp(user.IsAdmin())
		case "exit":
			fmt.Println("Goodbye!")
			return nil
		default:
			fmt.Println("Unknown command. Type 'help' for the command list.")
		}
	}
}

func printHelp(admin bool) {
	fmt.Println("Available commands:")
	fmt.Println("  Catalog: search, popular, reviews")
	fmt.Println("  Loans: borrow, return, my loans, rate")
	fmt.Println("  Reservations: reserve, my reservations, cancel reservation, notifications")
	if admin {
		fmt.Println("  Admin: add book, add copies, remove book, set copy status,")
		fmt.Println("         create user, change subscription, settle penalty, notify, history, stats")
	}
	fmt.Println("  System: help, exit")
}

func adminOnly(user *library.User, fn func()) {
	if !user.IsAdmin() {
		fmt.Println("This command requires an admin account.")
		return
	}
	fn()
}

func login(sc *bufio.Scanner, svc *library.LibraryService) *library.User {
	for {
		fmt.Print("\nUsername (or 'register' / 'exit'): ")
		if !sc.Scan() {
			return nil
		}
		username := strings.TrimSpace(sc.Text())

		switch username {
		case "exit":
			return nil
		case "register":
			if user := register(sc, svc); user != nil {
				return user
			}
			continue
		case "":
			continue
		}

		password, err := readPassword("Password: ")
		if err != nil {
			fmt.Printf("Error reading password: %v\n", err)
			continue
		}

		user, ok := svc.Authenticate(username, password)
		if !ok {
			fmt.Println("Invalid credentials.")
			continue
		}
		return user
	}
}

func register(sc *bufio.Scanner, svc *library.LibraryService) *library.User {
	fmt.Print("New username: ")
	if !sc.Scan() {
		return nil
	}
	username := strings.TrimSpace(sc.Text())
	if username == "" {
		fmt.Println("Username cannot be empty.")
		return nil
	}

	password, err := readPassword("New password: ")
	if err != nil || password == "" {
		fmt.Println("Password cannot be empty.")
		return nil
	}

	fmt.Print("Subscription (basic/premium/vip) [basic]: ")
	if !sc.Scan() {
		return nil
	}
	subType := library.SubscriptionType(strings.TrimSpace(strings.ToLower(sc.Text())))
	if subType == "" {
		subType = library.SubscriptionBasic
	}

	user, err := svc.CreateUser(username, password, false, subType, 365)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil
	}
	fmt.Printf("Account created. Welcome, %s!\n", user.Username)
	return user
}

// ------------------ Catalog ------------------

func handleSearch(sc *bufio.Scanner, svc *library.LibraryService) {
	query := promptLine(sc, "Query (title/author substring, optional): ")
	category := promptLine(sc, "Category filter (optional): ")
	author := promptLine(sc, "Author filter (optional): ")

	books := svc.SearchBooks(query, category, author)
	if len(books) == 0 {
		fmt.Println("No books found.")
		return
	}
	printBooks(books)
}

func printBooks(books []*library.Book) {
	fmt.Printf("%-36s %-30s %-20s %-12s %-10s %s\n", "ID", "Title", "Author", "Category", "Available", "Rating")
	fmt.Println(strings.Repeat("-", 120))
	for _, b := range books {
		available := 0
		for _, c := range b.Copies {
			if c.Status == library.CopyAvailable {
				available++
			}
		}
		rating := "-"
		if avg, ok := b.AverageRating(); ok {
			rating = fmt.Sprintf("%.1f", avg)
		}
		fmt.Printf("%-36s %-30s %-20s %-12s %d/%-8d %s\n",
			b.ID, truncateString(b.Title, 30), truncateString(b.Author, 20),
			truncateString(b.Category, 12), available, len(b.Copies), rating)
	}
}

func handlePopular(svc *library.LibraryService) {
	books := svc.PopularBooks(5)
	if len(books) == 0 {
		fmt.Println("No books in library.")
		return
	}
	for i, b := range books {
		fmt.Printf("%d. %s by %s (%d loans)\n", i+1, b.Title, b.Author, len(b.LoanHistory))
	}
}

func handleReviews(sc *bufio.Scanner, svc *library.LibraryService) {
	bookID := promptLine(sc, "Book ID: ")
	if bookID == "" {
		return
	}
	reviews, err := svc.BookReviews(bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(reviews) == 0 {
		fmt.Println("No reviews yet.")
		return
	}
	for _, r := range reviews {
		fmt.Printf("- [%s] %s\n", r.UserID, r.Text)
	}
}

// ------------------ Loans ------------------

func handleBorrow(sc *bufio.Scanner, svc *library.LibraryService, user *library.User) {
	bookID := promptLine(sc, "Book ID: ")
	if bookID == "" {
		return
	}

	loan, err := svc.BorrowBook(user.ID, bookID)
	if err != nil {
		if errors.Is(err, library.ErrNoCopyAvailable) {
			fmt.Println("No copy available. You can reserve this book instead.")
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Loan created. Due date: %s\n", loan.DueDate)
}

func handleReturn(sc *bufio.Scanner, svc *library.LibraryService) {
	loanID := promptLine(sc, "Loan ID: ")
	if loanID == "" {
		return
	}
	if err := svc.ReturnBook(loanID); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Book returned.")
}

func handleMyLoans(svc *library.LibraryService, user *library.User) {
	loans := svc.GetUserLoans(user.ID, false)
	if len(loans) == 0 {
		fmt.Println("No loans.")
		return
	}
	fmt.Printf("%-36s %-30s %-12s %-12s %-12s %s\n", "Loan ID", "Book", "Borrowed", "Due", "Returned", "Penalty")
	fmt.Println(strings.Repeat("-", 115))
	for _, l := range loans {
		title := l.BookID
		if b, err := svc.GetBook(l.BookID); err == nil {
			title = b.Title
		}
		returned := "-"
		if l.ReturnedAt != nil {
			returned = l.ReturnedAt.String()
		}
		fmt.Printf("%-36s %-30s %-12s %-12s %-12s %.2f\n",
			l.ID, truncateString(title, 30), l.BorrowedAt, l.DueDate, returned, l.PenaltyApplied)
	}
	if u, err := svc.GetUser(user.ID); err == nil && u.PenaltiesDue > 0 {
		fmt.Printf("Outstanding penalties: %.2f (borrowing blocked until settled)\n", u.PenaltiesDue)
	}
}

func handleRate(sc *bufio.Scanner, svc *library.LibraryService, user *library.User) {
	bookID := promptLine(sc, "Book ID: ")
	if bookID == "" {
		return
	}
	ratingStr := promptLine(sc, "Rating (1-5): ")
	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		fmt.Printf("Invalid rating: %s\n", ratingStr)
		return
	}
	comment := promptLine(sc, "Comment (optional): ")

	if err := svc.RateBook(user.ID, bookID, rating, comment); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Thanks for the rating!")
}

// ------------------ Reservations ------------------

func handleReserve(sc *bufio.Scanner, svc *library.LibraryService, user *library.User) {
	bookID := promptLine(sc, "Book ID: ")
	if bookID == "" {
		return
	}
	res, err := svc.ReserveBook(user.ID, bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Reservation %s created. You will be notified when a copy frees up.\n", res.ID)
}

func handleMyReservations(svc *library.LibraryService, user *library.User) {
	reservations := svc.GetUserReservations(user.ID)
	if len(reservations) == 0 {
		fmt.Println("No reservations.")
		return
	}
	for _, r := range reservations {
		title := r.BookID
		if b, err := svc.GetBook(r.BookID); err == nil {
			title = b.Title
		}
		status := "waiting"
		if r.Notified {
			status = "notified"
		}
		fmt.Printf("- %s: %s (%s, since %s)\n", r.ID, title, status, r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func handleCancelReservation(sc *bufio.Scanner, svc *library.LibraryService) {
	resID := promptLine(sc, "Reservation ID: ")
	if resID == "" {
		return
	}
	if err := svc.CancelReservation(resID); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Reservation cancelled.")
}

func handleNotifications(svc *library.LibraryService, user *library.User) {
	notes, err := svc.DrainNotifications(user.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(notes) == 0 {
		fmt.Println("No notifications.")
		return
	}
	for _, n := range notes {
		fmt.Printf("* %s\n", n)
	}
}

// ------------------ Admin ------------------

func handleAddBook(sc *bufio.Scanner, svc *library.LibraryService) {
	title := promptLine(sc, "Title: ")
	author := promptLine(sc, "Author: ")
	category := promptLine(sc, "Category: ")
	copiesStr := promptLine(sc, "Copies [1]: ")

	copies := 1
	if copiesStr != "" {
		n, err := strconv.Atoi(copiesStr)
		if err != nil || n < 0 {
			fmt.Printf("Invalid copy count: %s\n", copiesStr)
			return
		}
		copies = n
	}

	book, err := svc.AddBook(title, author, category, copies)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Added book %s with %d copies.\n", book.ID, len(book.Copies))
}

func handleAddCopies(sc *bufio.Scanner, svc *library.LibraryService) {
	bookID := promptLine(sc, "Book ID: ")
	countStr := promptLine(sc, "How many copies: ")
	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		fmt.Printf("Invalid count: %s\n", countStr)
		return
	}
	if err := svc.AddCopies(bookID, count); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Copies added.")
}

func handleRemoveBook(sc *bufio.Scanner, svc *library.LibraryService) {
	bookID := promptLine(sc, "Book ID: ")
	if bookID == "" {
		return
	}
	if err := svc.RemoveBook(bookID); err != nil {
		if errors.Is(err, library.ErrBookHasActiveLoans) {
			fmt.Println("Cannot remove: the book still has active loans.")
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Book removed (reservations cancelled).")
}

func handleSetCopyStatus(sc *bufio.Scanner, svc *library.LibraryService) {
	bookID := promptLine(sc, "Book ID: ")
	copyID := promptLine(sc, "Copy ID: ")
	status := promptLine(sc, "Status (available/loaned/damaged/lost): ")

	if err := svc.SetCopyStatus(bookID, copyID, library.CopyStatus(status)); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Status updated.")
}

func handleCreateUser(sc *bufio.Scanner, svc *library.LibraryService) {
	username := promptLine(sc, "Username: ")
	if username == "" {
		return
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil || password == "" {
		fmt.Println("Password cannot be empty.")
		return
	}
	isAdmin := strings.EqualFold(promptLine(sc, "Admin account? (y/N): "), "y")
	subType := library.SubscriptionType(strings.ToLower(promptLine(sc, "Subscription (basic/premium/vip) [basic]: ")))
	if subType == "" {
		subType = library.SubscriptionBasic
	}
	daysStr := promptLine(sc, "Subscription duration in days [365]: ")
	days := 365
	if daysStr != "" {
		if n, err := strconv.Atoi(daysStr); err == nil {
			days = n
		}
	}

	user, err := svc.CreateUser(username, password, isAdmin, subType, days)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Created user %s (ID %s).\n", user.Username, user.ID)
}

func handleChangeSubscription(sc *bufio.Scanner, svc *library.LibraryService) {
	userID := promptLine(sc, "User ID: ")
	newType := library.SubscriptionType(strings.ToLower(promptLine(sc, "New type (basic/premium/vip): ")))
	daysStr := promptLine(sc, "Extra days [365]: ")
	days := 365
	if daysStr != "" {
		if n, err := strconv.Atoi(daysStr); err == nil {
			days = n
		}
	}

	if err := svc.ChangeSubscription(userID, newType, days); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Subscription updated.")
}

func handleSettlePenalty(sc *bufio.Scanner, svc *library.LibraryService) {
	userID := promptLine(sc, "User ID: ")
	amountStr := promptLine(sc, "Amount: ")
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		fmt.Printf("Invalid amount: %s\n", amountStr)
		return
	}

	remaining, err := svc.SettlePenalties(userID, amount)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Remaining penalties: %.2f\n", remaining)
}

func handleNotify(sc *bufio.Scanner, svc *library.LibraryService) {
	bookID := promptLine(sc, "Book ID: ")
	if bookID == "" {
		return
	}
	if err := svc.NotifyNextReservation(bookID); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Next reservation holder notified (if any).")
}

func handleHistory(sc *bufio.Scanner, svc *library.LibraryService) {
	bookID := promptLine(sc, "Book ID: ")
	if bookID == "" {
		return
	}
	loans, err := svc.BookHistory(bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(loans) == 0 {
		fmt.Println("No loans recorded for this book.")
		return
	}
	for _, l := range loans {
		returned := "active"
		if l.ReturnedAt != nil {
			returned = "returned " + l.ReturnedAt.String()
		}
		fmt.Printf("- %s: user %s, borrowed %s, due %s, %s\n", l.ID, l.UserID, l.BorrowedAt, l.DueDate, returned)
	}
}

func printStatistics(stats library.Statistics) {
	fmt.Printf("Occupation rate: %.1f%%\n", stats.OccupationRate)

	fmt.Println("\nMost borrowed books:")
	if len(stats.PopularBooks) == 0 {
		fmt.Println("  (none)")
	}
	for i, b := range stats.PopularBooks {
		fmt.Printf("  %d. %s by %s (%d loans)\n", i+1, b.Title, b.Author, b.Loans)
	}

	fmt.Println("\nMost active users:")
	if len(stats.ActiveUsers) == 0 {
		fmt.Println("  (none)")
	}
	for i, u := range stats.ActiveUsers {
		fmt.Printf("  %d. %s (%d loans)\n", i+1, u.Username, u.Loans)
	}
}

// ------------------ Utilities ------------------

func promptLine(sc *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	if !sc.Scan() {
		return ""
	}
	return strings.TrimSpace(sc.Text())
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
