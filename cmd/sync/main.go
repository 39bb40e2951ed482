// Command sync reads a user's enrollments from the LMS REST API and prints the
// sections each enrollment unlocks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-course-access/internal/config"
	"github.com/ariefcatur/go-course-access/internal/entitlement"
	"github.com/ariefcatur/go-course-access/internal/lmsapi"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var userID, courseID string
	var asJSON bool
	flag.StringVar(&userID, "user", "", "LMS user id (required)")
	flag.StringVar(&courseID, "course", "", "only report this course")
	flag.StringVar(&cfg.LMSBaseURL, "base-url", cfg.LMSBaseURL, "LMS API base URL")
	flag.StringVar(&cfg.LMSToken, "token", cfg.LMSToken, "bearer token (default $LMS_TOKEN)")
	flag.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	flag.Parse()

	if userID == "" || cfg.LMSToken == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := collect(ctx, lmsapi.New(cfg.LMSBaseURL, cfg.LMSTimeout), cfg.LMSToken, userID, courseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(results)
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COURSE\tENROLLMENT\tSTATUS\tPAID\tCREDIT\tSECTION\tPRICE\tUNLOCKED")
	for _, r := range results {
		for _, s := range r.Sections {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
				r.CourseID, r.EnrollmentID, r.Status, money(r.AmountPaidCents), money(r.RemainingCreditCents),
				s.Title, money(s.PriceCents), s.Unlocked)
		}
	}
	_ = tw.Flush()
}

func collect(ctx context.Context, c *lmsapi.Client, token, userID, courseID string) ([]entitlement.Result, error) {
	svc := entitlement.NewService(c.Session(token, userID), nil)
	if courseID != "" {
		res, err := svc.ForCourse(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		return []entitlement.Result{res}, nil
	}

	enrollments, err := c.AllEnrollments(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	out := make([]entitlement.Result, 0, len(enrollments))
	for _, e := range enrollments {
		res, err := svc.ForEnrollment(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("enrollment %s: %w", e.ID, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
