package bench

import (
	"fmt"
	"math/rand"

	"github.com/indrora/tusk/internal/json"
)

var (
	services = []string{"gateway", "auth", "billing", "search", "catalog", "inventory", "mailer", "scheduler"}
	regions  = []string{"us-east-1", "us-west-2", "eu-central-1", "ap-southeast-2"}
	levels   = []string{"debug", "info", "warn", "error"}
)

// Payload builds a configuration-shaped JSON object whose canonical encoding
// is close to size bytes. The same name and size always give the same
// object.
func Payload(name string, size int) map[string]any {
	rng := rand.New(rand.NewSource(int64(size)))

	doc := map[string]any{
		"name":    name,
		"version": "1.0.0",
		"config": map[string]any{
			"debug":     false,
			"log_level": "info",
			"region":    regions[rng.Intn(len(regions))],
		},
	}
	base, _ := json.Marshal(doc)
	// ,"services":[] plus the separators between entries
	approx := len(base) + 14

	var entries []any
	for i := 0; approx < size; i++ {
		e := entry(rng, i)
		b, _ := json.Marshal(e)
		approx += len(b) + 1
		entries = append(entries, e)
	}
	if entries != nil {
		doc["services"] = entries
	}
	return doc
}

func entry(rng *rand.Rand, i int) map[string]any {
	svc := services[rng.Intn(len(services))]
	return map[string]any{
		"id":       i,
		"service":  svc,
		"host":     fmt.Sprintf("%s-%02d.internal", svc, rng.Intn(32)),
		"port":     8000 + rng.Intn(100),
		"enabled":  rng.Intn(4) != 0,
		"replicas": 1 + rng.Intn(8),
		"log":      levels[rng.Intn(len(levels))],
		"weight":   float64(rng.Intn(100)) / 100,
	}
}
