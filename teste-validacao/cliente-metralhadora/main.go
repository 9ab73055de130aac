package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Cliente de validação manual: metralha o gateway com N+1 requisições
// idênticas e mostra em qual delas o 429 aparece.
func main() {
	target := flag.String("target", "http://localhost:8080/api/leads", "URL do gateway")
	total := flag.Int("n", 61, "quantidade de requisições")
	flag.Parse()

	body := []byte(`{"jet_id":"jet-validacao","shop_domain":"loja.myshopify.com","product_id":"p-1"}`)
	client := &http.Client{Timeout: 5 * time.Second}

	for i := 1; i <= *total; i++ {
		req, err := http.NewRequest(http.MethodPost, *target, bytes.NewReader(body))
		if err != nil {
			fmt.Printf("#%d erro montando requisição: %v\n", i, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "https://loja.myshopify.com")
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36")
		req.Header.Set("X-Forwarded-Proto", "https")

		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("#%d erro: %v\n", i, err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			fmt.Printf("#%d -> %d (Retry-After: %s)\n", i, resp.StatusCode, resp.Header.Get("Retry-After"))
		} else {
			fmt.Printf("#%d -> %d\n", i, resp.StatusCode)
		}
	}
}
