package relations

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/relschema/internal/inflect"
	"github.com/tordrt/relschema/internal/schema"
)

// builder assembles test tables with an id primary key unless told otherwise
type builder struct {
	t schema.Table
}

func table(name string, columns ...string) *builder {
	b := &builder{t: schema.Table{
		Name:       name,
		PrimaryKey: &schema.PrimaryKey{Name: "primary", Columns: []string{"id"}},
	}}
	b.column("id", schema.TypeBigInteger)
	for _, c := range columns {
		b.column(c, schema.TypeString)
	}
	return b
}

func (b *builder) column(name string, typ schema.SemanticType) *builder {
	if !b.t.HasColumn(name) {
		b.t.Columns = append(b.t.Columns, schema.Column{Name: name, SemanticType: typ})
	}
	return b
}

func (b *builder) fk(column, foreign string) *builder {
	return b.fkAction(column, foreign, schema.Restrict)
}

func (b *builder) fkAction(column, foreign string, onDelete schema.ReferentialAction) *builder {
	b.column(column, schema.TypeBigInteger)
	b.t.ForeignKeys = append(b.t.ForeignKeys, schema.ForeignKey{
		Name:          fmt.Sprintf("%s_%s_foreign", b.t.Name, column),
		Column:        column,
		ForeignTable:  foreign,
		ForeignColumn: "id",
		OnDelete:      onDelete,
		Position:      1,
	})
	return b
}

func (b *builder) nullable(column string) *builder {
	c, _ := b.t.Column(column)
	c.Nullable = true
	return b
}

func (b *builder) unique(columns ...string) *builder {
	b.t.Indexes = append(b.t.Indexes, schema.Index{Name: fmt.Sprint(columns), Columns: columns, Unique: true})
	return b
}

// primary replaces the id key with a composite key over existing columns
func (b *builder) primary(columns ...string) *builder {
	b.t.Columns = b.t.Columns[1:]
	b.t.PrimaryKey = &schema.PrimaryKey{Name: "primary", Columns: columns}
	return b
}

func (b *builder) timestamps() *builder {
	b.column("created_at", schema.TypeDateTime)
	b.column("updated_at", schema.TypeDateTime)
	b.t.HasTimestamps = true
	return b
}

func (b *builder) build() schema.Table { return b.t }

func tables(builders ...*builder) []schema.Table {
	out := make([]schema.Table, 0, len(builders))
	for _, b := range builders {
		out = append(out, b.build())
	}
	return out
}

func owned(rels []schema.Relationship, owner string) []schema.Relationship {
	var out []schema.Relationship
	for _, r := range rels {
		if r.OwnerTable == owner {
			out = append(out, r)
		}
	}
	return out
}

func TestAnalyzeBelongsToAndHasMany(t *testing.T) {
	rels := Analyze(tables(
		table("users", "name"),
		table("posts", "title").fkAction("user_id", "users", schema.Cascade),
	), Options{})

	want := []schema.Relationship{
		{Kind: schema.HasMany, Name: "posts", OwnerTable: "users", RelatedTable: "posts", ForeignKey: "user_id", LocalKey: "id", OnDelete: schema.Cascade},
		{Kind: schema.BelongsTo, Name: "user", OwnerTable: "posts", RelatedTable: "users", ForeignKey: "user_id", LocalKey: "id", OnDelete: schema.Cascade},
	}
	if diff := cmp.Diff(want, rels); diff != "" {
		t.Errorf("relationships mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeHasOneOnUniqueKey(t *testing.T) {
	rels := Analyze(tables(
		table("users"),
		table("profiles", "bio").fk("user_id", "users").unique("user_id").nullable("user_id"),
	), Options{})

	require.Len(t, rels, 2)
	assert.Equal(t, schema.HasOne, rels[0].Kind)
	assert.Equal(t, "profile", rels[0].Name)
	assert.True(t, rels[0].Nullable)
	assert.Equal(t, schema.BelongsTo, rels[1].Kind)
	assert.True(t, rels[1].Nullable)
}

func TestAnalyzeSymmetry(t *testing.T) {
	input := tables(
		table("users"),
		table("teams").fk("owner_id", "users"),
		table("messages", "body").fk("sender_id", "users").fk("recipient_id", "users").fk("team_id", "teams"),
		table("profiles").fk("user_id", "users").unique("user_id"),
		table("categories").fk("parent_id", "categories").nullable("parent_id"),
	)
	rels := Analyze(input, Options{})

	var belongsTo, reverse int
	for _, bt := range rels {
		if bt.Kind != schema.BelongsTo {
			continue
		}
		belongsTo++
		mirrors := 0
		for _, r := range rels {
			if (r.Kind == schema.HasOne || r.Kind == schema.HasMany) &&
				r.OwnerTable == bt.RelatedTable && r.RelatedTable == bt.OwnerTable && r.ForeignKey == bt.ForeignKey {
				mirrors++
			}
		}
		assert.Equal(t, 1, mirrors, "mirror of %s.%s", bt.OwnerTable, bt.ForeignKey)
	}
	for _, r := range rels {
		if r.Kind == schema.HasOne || r.Kind == schema.HasMany {
			reverse++
		}
	}
	assert.Equal(t, 6, belongsTo)
	assert.Equal(t, belongsTo, reverse)
}

func TestAnalyzeBareKeyPairIsSelfPivot(t *testing.T) {
	rels := Analyze(tables(
		table("users"),
		table("messages").fk("sender_id", "users").fk("recipient_id", "users"),
	), Options{})

	require.Len(t, rels, 1)
	assert.Equal(t, schema.BelongsToMany, rels[0].Kind)
	assert.Equal(t, "recipients", rels[0].Name)
}

func TestAnalyzeReverseNames(t *testing.T) {
	rels := Analyze(tables(
		table("users"),
		table("messages", "body").fk("sender_id", "users").fk("recipient_id", "users"),
		table("categories").fk("parent_id", "categories"),
		table("employees").fk("manager_id", "employees"),
	), Options{})

	names := make(map[string][]string)
	for _, r := range rels {
		names[r.OwnerTable] = append(names[r.OwnerTable], r.Kind.String()+":"+r.Name)
	}

	assert.Equal(t, []string{"hasMany:recipient_messages", "hasMany:sender_messages"}, names["users"])
	assert.Equal(t, []string{"belongsTo:recipient", "belongsTo:sender"}, names["messages"])
	assert.Equal(t, []string{"belongsTo:parent", "hasMany:children"}, names["categories"])
	assert.Equal(t, []string{"belongsTo:manager", "hasMany:manager_employees"}, names["employees"])
}

func TestAnalyzeBelongsToNameCollision(t *testing.T) {
	rels := Analyze(tables(
		table("users"),
		table("books", "author").fk("author_id", "users").fk("editorId", "users"),
	), Options{})

	var names []string
	for _, r := range owned(rels, "books") {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"author_id", "editor"}, names)
}

func TestAnalyzePivot(t *testing.T) {
	rels := Analyze(tables(
		table("posts", "title"),
		table("tags", "name"),
		table("post_tag").fk("post_id", "posts").fk("tag_id", "tags").primary("post_id", "tag_id").timestamps(),
	), Options{})

	want := []schema.Relationship{
		{
			Kind: schema.BelongsToMany, Name: "tags", OwnerTable: "posts", RelatedTable: "tags", LocalKey: "id",
			Pivot: &schema.Pivot{Table: "post_tag", ForeignPivotKey: "post_id", RelatedPivotKey: "tag_id", Timestamps: true},
		},
		{
			Kind: schema.BelongsToMany, Name: "posts", OwnerTable: "tags", RelatedTable: "posts", LocalKey: "id",
			Pivot: &schema.Pivot{Table: "post_tag", ForeignPivotKey: "tag_id", RelatedPivotKey: "post_id", Timestamps: true},
		},
	}
	if diff := cmp.Diff(want, rels); diff != "" {
		t.Errorf("relationships mismatch (-want +got):\n%s", diff)
	}

	for _, r := range rels {
		assert.NotEqual(t, "post_tag", r.OwnerTable)
		assert.NotEqual(t, "post_tag", r.RelatedTable)
	}
}

func TestAnalyzePivotDataColumns(t *testing.T) {
	t.Run("unique pair keeps pivot data", func(t *testing.T) {
		rels := Analyze(tables(
			table("roles"),
			table("users"),
			table("role_user", "expires_at").fk("role_id", "roles").fk("user_id", "users").unique("role_id", "user_id"),
		), Options{})

		require.Len(t, rels, 2)
		for _, r := range rels {
			require.Equal(t, schema.BelongsToMany, r.Kind)
			assert.Equal(t, []string{"expires_at"}, r.Pivot.Columns)
			assert.False(t, r.Pivot.Timestamps)
		}
	})

	t.Run("extra columns without unique pair make an entity", func(t *testing.T) {
		rels := Analyze(tables(
			table("roles"),
			table("users"),
			table("role_user", "expires_at").fk("role_id", "roles").fk("user_id", "users"),
		), Options{})

		require.Len(t, rels, 4)
		assert.Len(t, owned(rels, "role_user"), 2)
	})

	t.Run("referenced tables are never pivots", func(t *testing.T) {
		rels := Analyze(tables(
			table("courses"),
			table("students"),
			table("enrollments").fk("course_id", "courses").fk("student_id", "students"),
			table("grades", "score").fk("enrollment_id", "enrollments"),
		), Options{})

		for _, r := range rels {
			assert.NotEqual(t, schema.BelongsToMany, r.Kind)
		}
		assert.Len(t, owned(rels, "enrollments"), 3)
	})
}

func TestAnalyzeSelfPivot(t *testing.T) {
	rels := Analyze(tables(
		table("users"),
		table("friendships").fk("user_id", "users").fk("friend_id", "users").primary("user_id", "friend_id"),
	), Options{})

	require.Len(t, rels, 1)
	r := rels[0]
	assert.Equal(t, schema.BelongsToMany, r.Kind)
	assert.Equal(t, "friends", r.Name)
	assert.Equal(t, "users", r.OwnerTable)
	assert.Equal(t, "users", r.RelatedTable)
	assert.Equal(t, "user_id", r.Pivot.ForeignPivotKey)
	assert.Equal(t, "friend_id", r.Pivot.RelatedPivotKey)
}

func TestAnalyzeMorph(t *testing.T) {
	rels := Analyze(tables(
		table("subjects"),
		table("activities", "subject_type", "description").column("subject_id", schema.TypeBigInteger),
	), Options{})

	morph := &schema.Morph{Name: "subject", TypeColumn: "subject_type", IDColumn: "subject_id"}
	want := []schema.Relationship{
		{Kind: schema.MorphMany, Name: "activities", OwnerTable: "subjects", RelatedTable: "activities", ForeignKey: "subject_id", LocalKey: "id", Morph: morph},
		{Kind: schema.MorphTo, Name: "subject", OwnerTable: "activities", ForeignKey: "subject_id", Morph: morph},
	}
	if diff := cmp.Diff(want, rels); diff != "" {
		t.Errorf("relationships mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeMorphOne(t *testing.T) {
	rels := Analyze(tables(
		table("images", "imageable_type", "url").column("imageable_id", schema.TypeBigInteger).unique("imageable_type", "imageable_id"),
		table("users"),
		table("tags"),
	), Options{})

	require.Len(t, rels, 1, "no table matches the imageable stem except images itself")
	assert.Equal(t, schema.MorphTo, rels[0].Kind)

	rels = Analyze(tables(
		table("tags"),
		table("labels", "taggable_type").column("taggable_id", schema.TypeBigInteger).unique("taggable_id", "taggable_type"),
	), Options{})

	require.Len(t, rels, 2)
	assert.Equal(t, schema.MorphOne, rels[0].Kind)
	assert.Equal(t, "tags", rels[0].OwnerTable)
	assert.Equal(t, "label", rels[0].Name)
}

func TestAnalyzeMorphSkipsForeignKeys(t *testing.T) {
	rels := Analyze(tables(
		table("owners"),
		table("pets", "owner_type").fk("owner_id", "owners"),
	), Options{})

	for _, r := range rels {
		assert.NotEqual(t, schema.MorphTo, r.Kind)
		assert.NotEqual(t, schema.MorphMany, r.Kind)
	}
}

func TestMorphMatches(t *testing.T) {
	in := inflect.Default()
	tests := []struct {
		morph, table string
		want         bool
	}{
		{"subject", "subjects", true},
		{"post", "post", true},
		{"commentable", "comments", true},
		{"taggable", "tags", true},
		{"imageable", "images", true},
		{"imageable", "users", false},
		{"able", "ables", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, morphMatches(in, tt.morph, tt.table), "%s vs %s", tt.morph, tt.table)
	}
}

func TestAnalyzeIgnoresUnresolvedAndTrailingColumns(t *testing.T) {
	posts := table("posts").fk("user_id", "auth.users")
	posts.t.ForeignKeys = append(posts.t.ForeignKeys,
		schema.ForeignKey{Name: "posts_tenant_foreign", Column: "tenant_id", ForeignTable: "tenants", ForeignColumn: "id", Position: 1},
		schema.ForeignKey{Name: "posts_tenant_foreign", Column: "region_id", ForeignTable: "tenants", ForeignColumn: "region_id", Position: 2},
	)

	rels := Analyze(tables(table("tenants"), posts), Options{})
	require.Len(t, rels, 2)
	assert.Equal(t, "tenant_id", rels[0].ForeignKey)
	assert.Equal(t, "tenant_id", rels[1].ForeignKey)
}

func TestAnalyzeDeterministic(t *testing.T) {
	input := tables(
		table("users"),
		table("posts").fk("user_id", "users"),
		table("comments", "commentable_type").column("commentable_id", schema.TypeBigInteger).fk("user_id", "users"),
		table("tags"),
		table("post_tag").fk("post_id", "posts").fk("tag_id", "tags"),
		table("categories").fk("parent_id", "categories"),
	)

	first := Analyze(input, Options{})
	for range 5 {
		if diff := cmp.Diff(first, Analyze(input, Options{})); diff != "" {
			t.Fatalf("non-deterministic output:\n%s", diff)
		}
	}

	// Owners follow input order
	var owners []string
	for _, r := range first {
		if len(owners) == 0 || owners[len(owners)-1] != r.OwnerTable {
			owners = append(owners, r.OwnerTable)
		}
	}
	assert.Equal(t, []string{"users", "posts", "comments", "tags", "categories"}, owners)
}

func TestAnalyzeCustomInflector(t *testing.T) {
	in := inflect.WithIrregular(inflect.Default(), map[string]string{"octopus": "octopodes"})
	rels := Analyze(tables(
		table("aquariums"),
		table("octopodes").fk("aquarium_id", "aquariums").unique("aquarium_id"),
	), Options{Inflector: in})

	require.Len(t, rels, 2)
	assert.Equal(t, schema.HasOne, rels[0].Kind)
	assert.Equal(t, "octopus", rels[0].Name)
}
