package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	tests := []struct {
		name      string
		input     string
		wantName  string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "Plain JSON",
			input:     `{"name": "a", "count": 2}`,
			wantName:  "a",
			wantCount: 2,
		},
		{
			name:      "Whitespace padded",
			input:     "\n\n  {\"name\": \"b\", \"count\": 1}  \n",
			wantName:  "b",
			wantCount: 1,
		},
		{
			name:      "Fenced json block",
			input:     "Here you go:\n```json\n{\"name\": \"c\", \"count\": 3}\n```\nDone.",
			wantName:  "c",
			wantCount: 3,
		},
		{
			name:      "Bare fence",
			input:     "```\n{\"name\": \"d\", \"count\": 4}\n```",
			wantName:  "d",
			wantCount: 4,
		},
		{
			name:      "Embedded in prose",
			input:     `Sure! The result is {"name": "e", "count": 5} as requested.`,
			wantName:  "e",
			wantCount: 5,
		},
		{
			name:      "Braces inside string values",
			input:     `Result: {"name": "curly } brace", "count": 6}`,
			wantName:  "curly } brace",
			wantCount: 6,
		},
		{
			name:    "No JSON at all",
			input:   "I could not produce a result.",
			wantErr: true,
		},
		{
			name:    "Empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "Unbalanced",
			input:   `{"name": "f", "count":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			err := ExtractJSON(tt.input, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Name != tt.wantName || got.Count != tt.wantCount {
				t.Errorf("ExtractJSON() = %+v, want name=%q count=%d", got, tt.wantName, tt.wantCount)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	var got []int
	if err := ExtractJSON("The list is [1, 2, 3].", &got); err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("ExtractJSON() = %v, want [1 2 3]", got)
	}
}
