// Package testutils carries the shared fixtures for the test suites: a
// database pool wired from the environment, a reference schema, and
// deterministic generated row sets.
package testutils

import (
	"math/rand"
	"time"

	"github.com/icrowley/fake"
	"github.com/oklog/ulid/v2"

	"github.com/querylab/queryset-go/queryset/schema"
)

// UserSchema describes the fixture domain the suites query against:
// users with an array column, a JSON document column and a to-many
// relationship to articles.
func UserSchema() *schema.Registry {
	user := schema.NewEntity("user", "users").
		ID("id").
		AddField(schema.Field{Name: "id", Type: schema.TypeInt, Unique: true}).
		AddField(schema.Field{Name: "name", Type: schema.TypeString}).
		AddField(schema.Field{Name: "login", Type: schema.TypeString, Unique: true}).
		AddField(schema.Field{Name: "age", Type: schema.TypeInt}).
		AddField(schema.Field{Name: "rating", Type: schema.TypeFloat, Nullable: true}).
		AddField(schema.Field{Name: "tags", Type: schema.TypeString, Array: true}).
		AddField(schema.Field{Name: "meta", Type: schema.TypeJSON}).
		JSONLeaf("meta.grade", schema.TypeInt).
		AddRelationship(schema.Relationship{
			Name: "articles", Target: "article",
			LocalColumn: "id", RemoteColumn: "user_id", ToMany: true,
		})

	article := schema.NewEntity("article", "articles").
		ID("id").
		AddField(schema.Field{Name: "id", Type: schema.TypeString, Unique: true}).
		AddField(schema.Field{Name: "user_id", Type: schema.TypeInt}).
		AddField(schema.Field{Name: "title", Type: schema.TypeString}).
		AddField(schema.Field{Name: "published_at", Type: schema.TypeTime, Nullable: true}).
		AddRelationship(schema.Relationship{
			Name: "author", Target: "user",
			LocalColumn: "user_id", RemoteColumn: "id",
		})

	return schema.NewRegistry().Register(user).Register(article)
}

// UserRows generates n user rows keyed by dotted field path, the shape
// the in-memory backend consumes. Generation is seeded, so every call
// with the same n yields the same rows.
func UserRows(n int) []map[string]any {
	fake.Seed(42)
	rng := rand.New(rand.NewSource(42))

	rows := make([]map[string]any, n)
	for i := range rows {
		grade := int64(rng.Intn(5))
		// Flattened JSON leaves are keyed by dotted path alongside the
		// container, mirroring the column aliases of the SQL backend.
		rows[i] = map[string]any{
			"id":         int64(i + 1),
			"name":       fake.FullName(),
			"login":      fake.UserName(),
			"age":        int64(18 + rng.Intn(50)),
			"rating":     float64(rng.Intn(500)) / 100,
			"tags":       []any{fake.Word(), fake.Word()},
			"meta":       map[string]any{"grade": grade},
			"meta.grade": grade,
		}
	}
	return rows
}

// ArticleRows generates article rows for the given users, with ULID
// primary keys issued from a fixed clock so runs are reproducible.
func ArticleRows(userIDs []int64, perUser int) []map[string]any {
	fake.Seed(42)
	entropy := ulid.Monotonic(rand.New(rand.NewSource(42)), 0)
	at := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	var rows []map[string]any
	for _, uid := range userIDs {
		for i := 0; i < perUser; i++ {
			rows = append(rows, map[string]any{
				"id":           ulid.MustNew(ulid.Timestamp(at), entropy).String(),
				"user_id":      uid,
				"title":        fake.Title(),
				"published_at": at.AddDate(0, 0, i),
			})
		}
	}
	return rows
}
