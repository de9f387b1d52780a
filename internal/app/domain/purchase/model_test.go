package purchase

import "testing"

func TestPriceFor(t *testing.T) {
	cases := []struct {
		size     int
		price    int
		discount int
	}{
		{10, 20, 0},
		{25, 45, 10},
		{50, 85, 15},
		{100, 160, 20},
	}
	for _, tc := range cases {
		pack, ok := PriceFor(tc.size)
		if !ok {
			t.Fatalf("PriceFor(%d) not found", tc.size)
		}
		if pack.TotalPrice != tc.price {
			t.Errorf("pack %d: total price %d, want %d", tc.size, pack.TotalPrice, tc.price)
		}
		if pack.DiscountPercent != tc.discount {
			t.Errorf("pack %d: discount %d, want %d", tc.size, pack.DiscountPercent, tc.discount)
		}
	}
}

func TestPriceForUnknownSize(t *testing.T) {
	for _, size := range []int{0, -1, 5, 11, 1000} {
		if _, ok := PriceFor(size); ok {
			t.Errorf("PriceFor(%d) should not resolve", size)
		}
	}
}
