package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jaddr2line/formdata"
)

func TestParseArg(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.png")
	if err := os.WriteFile(path, []byte("hi"), 0640); err != nil {
		t.Fatal(err)
	}

	f, err := parseArg("a=b@c=d")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(formdata.TextField("a", "b@c=d"), f); diff != "" {
		t.Errorf("wrong text field (-want +got): %s", diff)
	}

	f, err = parseArg("upload@" + path)
	if err != nil {
		t.Fatal(err)
	}
	file := f.Value.(*formdata.File)
	if f.Name != "upload" || file.Name != "x.png" || file.Type != "image/png" {
		t.Errorf("wrong file field %q: %+v", f.Name, file)
	}

	f, err = parseArg("upload@" + path + ";type=text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if typ := f.Value.(*formdata.File).Type; typ != "text/plain" {
		t.Errorf("expected overridden type but got %q", typ)
	}

	for _, bad := range []string{"novalue", "=x", "@x", "f@", "f@" + filepath.Join(dir, "missing")} {
		if _, err := parseArg(bad); err == nil {
			t.Errorf("expected error parsing %q", bad)
		}
	}
}

func TestEncodeCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hi"), 0640); err != nil {
		t.Fatal(err)
	}
	formPath := filepath.Join(dir, "form.yaml")
	err := os.WriteFile(formPath, []byte(`
boundary: B
fields:
  - name: a
    value: "1"
  - name: f
    file: note.txt
    filename: x.txt
    type: text/plain
`), 0640)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "body")
	var stdout, stderr bytes.Buffer
	err = run([]string{"--form", formPath, "-o", out, "--check", "last=2"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("encode failed: %s\n%s", err, stderr.String())
	}

	dat, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	expect := "--B\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n1\r\n" +
		"--B\r\nContent-Disposition: form-data; name=\"f\"; filename=\"x.txt\"\r\nContent-Type: text/plain\r\n\r\nhi\r\n" +
		"--B\r\nContent-Disposition: form-data; name=\"last\"\r\n\r\n2\r\n--B--"
	if diff := cmp.Diff(expect, string(dat)); diff != "" {
		t.Errorf("wrong body (-want +got): %s", diff)
	}
}

func TestEncodeCommandCheck(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-b", "B", "--check", `bad"name=1`}, &stdout, &stderr)
	if err == nil {
		t.Error("expected unsafe name to be rejected")
	}
}

func TestFormFileErrors(t *testing.T) {
	dir := t.TempDir()
	tbl := map[string]string{
		"unknown key": "fields:\n  - name: a\n    valu: x\n",
		"both":        "fields:\n  - name: a\n    value: x\n    file: y\n",
		"neither":     "fields:\n  - name: a\n",
	}
	for name, content := range tbl {
		path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
		if err := os.WriteFile(path, []byte(content), 0640); err != nil {
			t.Fatal(err)
		}
		ff, err := loadFormFile(path)
		if err == nil {
			_, err = ff.form(dir)
		}
		if err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	form := formdata.Form{
		formdata.TextField("a", "1"),
		formdata.FileField("f", formdata.NewFile("sub/x.txt", "text/plain", []byte("hi"))),
	}

	for _, algo := range []string{"", "gzip"} {
		in := filepath.Join(dir, "body"+algo)
		body := formdata.NewBody(form, "B")
		var src io.Reader = body
		if algo != "" {
			zr, err := body.Compressed(algo, 0)
			if err != nil {
				t.Fatal(err)
			}
			defer zr.Close()
			src = zr
		}
		dat, err := io.ReadAll(src)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(in, dat, 0640); err != nil {
			t.Fatal(err)
		}
		var stdout, stderr bytes.Buffer
		args := []string{"-d", "-t", "-i", in, "--content-type", "multipart/form-data; boundary=B"}
		if algo != "" {
			args = append(args, "-z", algo)
		}
		if err := run(args, &stdout, &stderr); err != nil {
			t.Fatalf("list failed: %s\n%s", err, stderr.String())
		}
		expect := "a: \"1\"\nf: file \"sub/x.txt\" (text/plain, 2 bytes)\n"
		if diff := cmp.Diff(expect, stdout.String()); diff != "" {
			t.Errorf("wrong listing (-want +got): %s", diff)
		}

		out := filepath.Join(dir, "out"+algo)
		args = []string{"-d", "-b", "B", "-i", in, "-C", out}
		if algo != "" {
			args = append(args, "-z", algo)
		}
		if err := run(args, &stdout, &stderr); err != nil {
			t.Fatalf("extract failed: %s\n%s", err, stderr.String())
		}
		got, err := os.ReadFile(filepath.Join(out, "sub", "x.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "hi" {
			t.Errorf("expected extracted content %q but got %q", "hi", string(got))
		}
	}
}
