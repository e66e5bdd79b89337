package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSortAvailable(t *testing.T) {
	tests := []struct {
		name string
		in   []AvailableChannelInfo
		want []string
	}{
		{
			name: "counted before uncounted, descending",
			in: []AvailableChannelInfo{
				{Name: "#a", UserCount: 5, HasUserCount: true},
				{Name: "#b", UserCount: 10, HasUserCount: true},
				{Name: "#c"},
			},
			want: []string{"#b", "#a", "#c"},
		},
		{
			name: "count ties break by case-insensitive name",
			in: []AvailableChannelInfo{
				{Name: "#Zebra", UserCount: 3, HasUserCount: true},
				{Name: "#apple", UserCount: 3, HasUserCount: true},
				{Name: "#Mango", UserCount: 3, HasUserCount: true},
			},
			want: []string{"#apple", "#Mango", "#Zebra"},
		},
		{
			name: "uncounted sort by name among themselves",
			in: []AvailableChannelInfo{
				{Name: "#x"},
				{Name: "#B", UserCount: 1, HasUserCount: true},
				{Name: "#A"},
			},
			want: []string{"#B", "#A", "#x"},
		},
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sortAvailable(tt.in)
			var got []string
			for _, info := range tt.in {
				got = append(got, info.Name)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSortedMembers(t *testing.T) {
	ch := &Channel{
		Users: map[string]*User{
			"zoe":   {Nickname: "zoe"},
			"amy":   {Nickname: "amy", Modes: "+"},
			"pat":   {Nickname: "Pat", Modes: "@"},
			"quinn": {Nickname: "quinn", Modes: "~"},
			"bea":   {Nickname: "bea"},
		},
	}

	var got []string
	for _, u := range SortedMembers(ch) {
		got = append(got, u.Nickname)
	}
	want := []string{"Pat", "quinn", "amy", "bea", "zoe"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("member order mismatch (-want +got):\n%s", diff)
	}
}
