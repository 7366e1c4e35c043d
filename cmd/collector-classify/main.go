// Command collector-classify prints the source and medium a referrer resolves to
//
//	echo https://www.google.com/search?q=x | collector-classify
//	collector-classify -ai -domain shop.example https://chatgpt.com/ https://shop.example/cart
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"campaigncollector/internal/core/referrer"
	"campaigncollector/internal/core/touchpoint"
)

type result struct {
	Referrer string `json:"referrer"`
	Source   string `json:"source"`
	Medium   string `json:"medium"`
}

func main() {
	var (
		rules  = flag.String("rules", "", "rule table yaml; the embedded table when empty")
		ai     = flag.Bool("ai", false, "enable the optional ai assistant group")
		domain = flag.String("domain", "", "storage domain; referrers on it classify as direct")
	)
	flag.Parse()

	opt := referrer.LoadOptions{File: *rules}
	if *ai {
		opt.Enable = []string{"ai"}
	}
	table, err := referrer.Load(opt)
	must(err)

	in := io.Reader(os.Stdin)
	if flag.NArg() > 0 {
		in = strings.NewReader(strings.Join(flag.Args(), "\n"))
	}
	must(classify(referrer.New(table), *domain, in, os.Stdout))
}

// classify writes one JSON line per non-blank input line
func classify(c *referrer.Classifier, domain string, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		ref := strings.TrimSpace(sc.Text())
		if ref == "" {
			continue
		}
		r := result{Referrer: ref, Source: touchpoint.DirectSource, Medium: touchpoint.DirectMedium}
		if cls, ok := c.Classify(ref, domain); ok {
			r.Source, r.Medium = cls.Source, cls.Medium
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return sc.Err()
}

func must(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
