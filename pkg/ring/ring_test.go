package ring

import (
	"hash/fnv"
	"math"
	"testing"
)

// test hasher: FNV-1a 64-bit
func fnv64a(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func TestAddMemberLookup(t *testing.T) {
	r := New[string](128, fnv64a)

	r.Add("node1", "127.0.0.1:8080")
	r.Add("node2", "127.0.0.1:8081")
	r.Add("node3", "127.0.0.1:8082")

	for id, want := range map[string]string{
		"node1": "127.0.0.1:8080",
		"node2": "127.0.0.1:8081",
		"node3": "127.0.0.1:8082",
	} {
		got, ok := r.Member(id)
		if !ok || got != want {
			t.Fatalf("Member(%s) = (%q,%v), want (%q,true)", id, got, ok, want)
		}
	}

	// Lookup should return one of our members; stable for same key
	keys := [][]byte{[]byte("foo"), []byte("bar"), []byte("baz")}
	for _, k := range keys {
		id1 := r.LookupID(k)
		id2 := r.LookupID(k)
		if id1 == "" {
			t.Fatalf("LookupID(%q) returned empty id", k)
		}
		if id1 != id2 {
			t.Fatalf("LookupID(%q) not stable: %q != %q", k, id1, id2)
		}
		m, ok := r.Lookup(k)
		if want, _ := r.Member(id1); !ok || m != want {
			t.Fatalf("Lookup(%q) = (%q,%v), want (%q,true)", k, m, ok, want)
		}
	}
}

func TestEmptyRing(t *testing.T) {
	r := New[int](0, nil)
	if _, ok := r.Lookup([]byte("k")); ok {
		t.Fatal("Lookup on empty ring reported a member")
	}
	if id := r.LookupID([]byte("k")); id != "" {
		t.Fatalf("LookupID on empty ring = %q", id)
	}
	if ids := r.LookupN([]byte("k"), 3); ids != nil {
		t.Fatalf("LookupN on empty ring = %v", ids)
	}
}

func TestRemoveAffectsLookup(t *testing.T) {
	r := New[int](128, nil)
	r.Add("s1", 1)
	r.Add("s2", 2)
	r.Add("s3", 3)

	key := []byte("hot-key-123")
	before := r.LookupID(key)
	if before == "" {
		t.Fatal("Lookup empty before remove")
	}

	r.Remove(before)
	after := r.LookupID(key)
	if after == "" || after == before {
		t.Fatalf("Lookup did not change after removing %q: got %q", before, after)
	}
}

func TestDistributionRoughlyBalanced(t *testing.T) {
	// loose sanity check: with replicas the distribution should not be badly skewed
	r := New[int](128, nil)
	r.Add("s1", 1)
	r.Add("s2", 2)
	r.Add("s3", 3)

	const N = 6000
	counts := map[int]int{}
	for i := range N {
		m, _ := r.Lookup([]byte{byte(i >> 24), byte(i >> 16), byte(i >> 8), byte(i)})
		counts[m]++
	}
	ideal := float64(N) / 3.0
	for m, c := range counts {
		if c == 0 {
			t.Fatalf("member %d got zero keys", m)
		}
		if diff := math.Abs(float64(c)-ideal) / ideal; diff > 1.0 {
			t.Fatalf("distribution too skewed: member %d has %d (ideal %.1f)", m, c, ideal)
		}
	}
	if len(counts) != 3 {
		t.Fatalf("keys landed on %d members, want 3", len(counts))
	}
}

func TestLookupNDistinct(t *testing.T) {
	r := New[int](32, nil)
	r.Add("a", 0)
	r.Add("b", 1)
	r.Add("c", 2)

	ids := r.LookupN([]byte("k"), 5)
	if len(ids) != 3 {
		t.Fatalf("LookupN = %v, want 3 distinct ids", ids)
	}
	if ids[0] != r.LookupID([]byte("k")) {
		t.Fatalf("LookupN first = %q, want owner %q", ids[0], r.LookupID([]byte("k")))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %q in %v", id, ids)
		}
		seen[id] = true
	}
}

func TestIdempotentAddRemove(t *testing.T) {
	r := New[int](16, nil)
	r.Add("a", 1)
	r.Add("a", 2)
	if m, _ := r.Member("a"); m != 1 {
		t.Fatalf("second Add replaced member: %d", m)
	}
	r.Remove("a")
	r.Remove("a")
	r.Remove("never-added")
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}

func TestMembersReturnsCopy(t *testing.T) {
	r := New[string](8, nil)
	r.Add("n1", "a:1")
	r.Add("n2", "a:2")

	ms := r.Members()
	if len(ms) != 2 || ms["n1"] != "a:1" || ms["n2"] != "a:2" {
		t.Fatalf("Members() returned incorrect data: %v", ms)
	}
	ms["n3"] = "a:3"
	if _, ok := r.Members()["n3"]; ok {
		t.Fatal("Members() returned a reference, not a copy")
	}
}

func TestRemoveOnlyAffectsTargetMember(t *testing.T) {
	r := New[int](128, nil)
	r.Add("n1", 1)
	r.Add("n2", 2)
	r.Add("n3", 3)

	keys := [][]byte{[]byte("key1"), []byte("key2"), []byte("key3"), []byte("key4")}
	before := make(map[string]string)
	for _, k := range keys {
		before[string(k)] = r.LookupID(k)
	}

	r.Remove("n2")

	if _, ok := r.Member("n2"); ok {
		t.Fatal("n2 should have been removed")
	}
	for _, k := range keys {
		after := r.LookupID(k)
		if b := before[string(k)]; b != "n2" && after != b {
			t.Fatalf("key %q moved from %s to %s", k, b, after)
		}
	}
}
