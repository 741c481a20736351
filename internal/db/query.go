package db

import (
	"context"
	"fmt"
)

// Reference is one occurrence of a symbol, as returned by Grep or as
// the "ref" half of a RefDef from FindDefinition.
type Reference struct {
	File        string
	LineBegin   int
	LineEnd     int
	ColBegin    int
	ColEnd      int
	OffsetBegin int
	OffsetEnd   int
	Kind        string
	Spelling    string
}

// Declaration is the "def" half of a RefDef. Per spec §9, despite the
// field's name it is selected from tags with is_declaration = true,
// not is_definition = true — forward declarations are acceptable
// targets.
type Declaration struct {
	USR       string
	File      string
	LineBegin int
	LineEnd   int
	ColBegin  int
	ColEnd    int
	Kind      string
	Spelling  string
}

// RefDef pairs a reference with the declaration its USR resolves to.
type RefDef struct {
	Ref Reference
	Def Declaration
}

// FindDefinition finds every Tag in fileName whose [offset_begin,
// offset_end] range covers offset, joined on USR with any Tag marked
// is_declaration. Results are ordered narrowest-reference-span first,
// per spec §4.5.
func (s *Store) FindDefinition(ctx context.Context, fileName string, offset int) ([]RefDef, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT ref.offset1, ref.offset2, ref.line1, ref.line2, ref.col1, ref.col2, ref.kind, ref.spelling,
		       def.usr, defFile.name,
		       def.line1, def.line2, def.col1, def.col2, def.kind, def.spelling
		FROM tags AS ref
		INNER JOIN tags AS def ON def.usr = ref.usr
		INNER JOIN files AS defFile ON def.fileId = defFile.id
		INNER JOIN files AS refFile ON ref.fileId = refFile.id
		WHERE def.isDecl = 1
		  AND refFile.name = ?
		  AND ref.offset1 <= ?
		  AND ref.offset2 >= ?
		ORDER BY (ref.offset2 - ref.offset1)`,
		fileName, offset, offset)
	if err != nil {
		return nil, fmt.Errorf("finding definition: %w", err)
	}
	defer rows.Close()

	var results []RefDef
	for rows.Next() {
		var rd RefDef
		if err := rows.Scan(
			&rd.Ref.OffsetBegin, &rd.Ref.OffsetEnd, &rd.Ref.LineBegin, &rd.Ref.LineEnd, &rd.Ref.ColBegin, &rd.Ref.ColEnd,
			&rd.Ref.Kind, &rd.Ref.Spelling,
			&rd.Def.USR, &rd.Def.File,
			&rd.Def.LineBegin, &rd.Def.LineEnd, &rd.Def.ColBegin, &rd.Def.ColEnd, &rd.Def.Kind, &rd.Def.Spelling,
		); err != nil {
			return nil, fmt.Errorf("reading definition row: %w", err)
		}
		rd.Ref.File = fileName
		results = append(results, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Grep returns every Tag, in any file, whose USR equals usr.
func (s *Store) Grep(ctx context.Context, usr string) ([]Reference, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT ref.line1, ref.line2, ref.col1, ref.col2, ref.offset1, ref.offset2, refFile.name, ref.kind, ref.spelling
		FROM tags AS ref
		INNER JOIN files AS refFile ON ref.fileId = refFile.id
		WHERE ref.usr = ?`, usr)
	if err != nil {
		return nil, fmt.Errorf("grepping usr: %w", err)
	}
	defer rows.Close()

	var results []Reference
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.LineBegin, &r.LineEnd, &r.ColBegin, &r.ColEnd, &r.OffsetBegin, &r.OffsetEnd, &r.File, &r.Kind, &r.Spelling); err != nil {
			return nil, fmt.Errorf("reading reference row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
