package evaluation

import "testing"

func TestTickStatus(t *testing.T) {
	if got := TickStatus(0); got != StatusNormal {
		t.Fatalf("无干预时状态应为 %q, 实际 %q", StatusNormal, got)
	}
	if got := TickStatus(3); got != "3 interventions" {
		t.Fatalf("期望 \"3 interventions\", 实际 %q", got)
	}
}

func TestClassifyHealth(t *testing.T) {
	cases := []struct {
		criticals int64
		want      string
	}{
		{0, "Optimal"},
		{1, "Warning"},
		{3, "Warning"},
		{5, "Warning"},
		{6, "Critical/high-alert"},
		{42, "Critical/high-alert"},
	}

	for _, tc := range cases {
		if got := ClassifyHealth(tc.criticals); got != tc.want {
			t.Errorf("criticals=%d 应为 %q, 实际 %q", tc.criticals, tc.want, got)
		}
	}
}
