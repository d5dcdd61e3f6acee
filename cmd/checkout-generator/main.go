package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/spf13/cobra"
)

var categories = []string{"produce", "dairy", "bakery", "beverages", "household"}

func main() {
	var rootCmd = &cobra.Command{Use: "checkout-generator", SilenceUsage: true}
	rootCmd.AddCommand(newSeedCmd(), newRunCmd())
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

// --- seed ---

func newSeedCmd() *cobra.Command {
	var products, customers int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print SQL with a fake catalog, customers and promotions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), seedSQL(products, customers, rand.New(rand.NewSource(time.Now().UnixNano()))))
			return err
		},
	}
	cmd.Flags().IntVar(&products, "products", 20, "Number of products")
	cmd.Flags().IntVar(&customers, "customers", 10, "Number of customers")
	return cmd
}

func productID(i int) string  { return fmt.Sprintf("P%03d", i) }
func customerID(i int) string { return fmt.Sprintf("C%03d", i) }

func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func seedSQL(products, customers int, rnd *rand.Rand) string {
	var b strings.Builder
	b.WriteString("BEGIN;\n")
	for i := 1; i <= products; i++ {
		fmt.Fprintf(&b, "INSERT INTO products (id, name, price, category) VALUES (%s, %s, %d.%02d, %s) ON CONFLICT (id) DO NOTHING;\n",
			sqlQuote(productID(i)),
			sqlQuote(faker.Word()+" "+faker.Word()),
			1+rnd.Intn(49), rnd.Intn(100),
			sqlQuote(categories[i%len(categories)]),
		)
	}
	for i := 1; i <= customers; i++ {
		fmt.Fprintf(&b, "INSERT INTO customers (id, name, loyalty_points, credit_balance) VALUES (%s, %s, 0, %d.00) ON CONFLICT (id) DO NOTHING;\n",
			sqlQuote(customerID(i)),
			sqlQuote(faker.Name()),
			rnd.Intn(20),
		)
	}
	b.WriteString("INSERT INTO promotions (id, name, discount_type, discount_value, category, priority) VALUES ('PROMO-PRODUCE', '10% off produce', 'percentage', 10, 'produce', 10) ON CONFLICT (id) DO NOTHING;\n")
	if products > 0 {
		fmt.Fprintf(&b, "INSERT INTO promotions (id, name, discount_type, discount_value, product_id, priority) VALUES ('PROMO-%s', '$2 off %s', 'fixed', 2, %s, 20) ON CONFLICT (id) DO NOTHING;\n",
			productID(1), productID(1), sqlQuote(productID(1)))
	}
	b.WriteString("INSERT INTO promotions (id, name, discount_type, discount_value, applicable_to_all, priority) VALUES ('PROMO-STORE', '5% storewide', 'percentage', 5, TRUE, 30) ON CONFLICT (id) DO NOTHING;\n")
	b.WriteString("COMMIT;\n")
	return b.String()
}

// --- run ---

type runOptions struct {
	target       string
	clientID     string
	clientSecret string
	rps          int
	products     int
	customers    int
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive checkouts against the gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.target, "target", "http://localhost:8080", "Gateway base URL")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "till-01", "Terminal client id")
	cmd.Flags().StringVar(&opts.clientSecret, "client-secret", os.Getenv("TILL_01_SECRET"), "Terminal client secret")
	cmd.Flags().IntVar(&opts.rps, "rps", 5, "Checkouts per second")
	cmd.Flags().IntVar(&opts.products, "products", 20, "Number of seeded products")
	cmd.Flags().IntVar(&opts.customers, "customers", 10, "Number of seeded customers")
	return cmd
}

func run(opts runOptions) error {
	if opts.rps <= 0 || opts.products <= 0 {
		return fmt.Errorf("rps and products must be positive")
	}

	// 1. Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Terminal token
	c := &apiClient{base: strings.TrimRight(opts.target, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	if err := c.authenticate(ctx, opts.clientID, opts.clientSecret); err != nil {
		return err
	}
	log.Printf("Starting generator: target=%s, rps=%d\n", opts.target, opts.rps)

	// 3. Managing the request frequency via ticker
	ticker := time.NewTicker(time.Second / time.Duration(opts.rps))
	defer ticker.Stop()

	// 4. Main loop
	for {
		select {
		case <-ticker.C:
			// Start sending in a goroutine so as not to block the ticker
			go func() {
				if err := c.simulateCheckout(ctx, opts); err != nil {
					log.Printf("WARN: checkout failed: %v", err)
				}
			}()
		case <-ctx.Done():
			log.Println("Shutting down generator...")
			return nil
		}
	}
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *apiClient) authenticate(ctx context.Context, clientID, secret string) error {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {clientID},
		"client_secret": {secret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, http.StatusOK, &tok); err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	c.token = tok.AccessToken
	return nil
}

func (c *apiClient) call(ctx context.Context, method, path string, body any, want int, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api/v1"+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, want, out)
}

func (c *apiClient) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body : %v", err)
		}
	}()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// simulateCheckout plays one basket: a few scans, sometimes a loyalty customer with credits.
func (c *apiClient) simulateCheckout(ctx context.Context, opts runOptions) error {
	var session struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/sessions", nil, http.StatusCreated, &session); err != nil {
		return err
	}
	base := "/sessions/" + session.ID

	for i, n := 0, 1+rand.Intn(6); i < n; i++ {
		item := map[string]string{"product_id": productID(1 + rand.Intn(opts.products))}
		if err := c.call(ctx, http.MethodPost, base+"/items", item, http.StatusOK, nil); err != nil {
			return err
		}
	}

	if opts.customers > 0 && rand.Intn(2) == 0 {
		customer := map[string]string{"customer_id": customerID(1 + rand.Intn(opts.customers))}
		if err := c.call(ctx, http.MethodPut, base+"/customer", customer, http.StatusOK, nil); err != nil {
			return err
		}
		if rand.Intn(2) == 0 {
			if err := c.call(ctx, http.MethodPut, base+"/credits", map[string]bool{"use_credits": true}, http.StatusOK, nil); err != nil {
				return err
			}
		}
	}

	var rcpt struct {
		SaleID string `json:"sale_id"`
		Total  string `json:"total"`
	}
	if err := c.call(ctx, http.MethodPost, base+"/checkout", nil, http.StatusCreated, &rcpt); err != nil {
		return err
	}
	log.Printf("INFO: sale %s settled, total %s", rcpt.SaleID, rcpt.Total)
	return nil
}
