package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections(t *testing.T) {
	want := []string{"Customized_tours", "Guides", "Tours", "Carts", "Bookings"}
	cols := Collections()
	for _, name := range want {
		def, ok := cols[name]
		if !ok {
			t.Errorf("collection %s is not migrated", name)
			continue
		}
		if _, ok := def.Validator["$jsonSchema"]; !ok {
			t.Errorf("collection %s has no JSON schema", name)
		}
		if len(def.Indexes) == 0 {
			t.Errorf("collection %s has no indexes", name)
		}
	}
}

func TestPaymentReferenceIsUnique(t *testing.T) {
	for _, idx := range BookingsIndexes {
		keys, ok := idx.Keys.(bson.D)
		if !ok || len(keys) != 1 || keys[0].Key != "payment_reference" {
			continue
		}
		if idx.Options == nil || idx.Options.Unique == nil || !*idx.Options.Unique {
			t.Fatal("payment_reference index must be unique")
		}
		return
	}
	t.Fatal("no payment_reference index")
}
