// gen-config-schema writes the JSON schema of embuild.yaml.
package main

import (
	"log"
	"os"

	"github.com/tomster/embuild/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s path/to/schema.json", os.Args[0])
	}
	bs, err := config.ReflectSchema()
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(os.Args[1], bs, 0o644); err != nil {
		log.Fatal(err)
	}
}
