package mesh

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxelcore/voxelcore/voxerr"
)

// WriteFile picks an encoding by extension (.ply, .obj, .vtk) and writes
// m atomically: a temporary file in the same directory, then a rename, so
// an aborted write leaves path unchanged, §6.4.
func WriteFile(m TriangleMesh, path string) error {
	var encode func(w *bufio.Writer, m TriangleMesh) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		encode = encodePLY
	case ".obj":
		encode = encodeOBJ
	case ".vtk":
		encode = encodeVTK
	default:
		return voxerr.NewIOError(nil, "mesh: unrecognised extension %q", filepath.Ext(path))
	}
	return atomicWrite(path, func(w *bufio.Writer) error { return encode(w, m) })
}

// atomicWrite writes via a temp file in path's directory, fsyncs, then
// renames over path. On any error the temp file is removed and path is
// left untouched.
func atomicWrite(path string, write func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mesh-*.tmp")
	if err != nil {
		return voxerr.NewIOError(err, "mesh: create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return voxerr.NewIOError(err, "mesh: encode %s", path)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return voxerr.NewIOError(err, "mesh: flush %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return voxerr.NewIOError(err, "mesh: sync %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return voxerr.NewIOError(err, "mesh: close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return voxerr.NewIOError(err, "mesh: rename %s to %s", tmpPath, path)
	}
	succeeded = true
	return nil
}

// encodePLY writes an ASCII PLY with per-vertex colour, mirroring
// pointcloud's PCD/PLY writer idiom (pointcloud.WriteToPLYFile's header +
// body layout) extended with a face list.
func encodePLY(w *bufio.Writer, m TriangleMesh) error {
	fmt.Fprintln(w, "ply")
	fmt.Fprintln(w, "format ascii 1.0")
	fmt.Fprintf(w, "element vertex %d\n", len(m.Vertices))
	fmt.Fprintln(w, "property float x")
	fmt.Fprintln(w, "property float y")
	fmt.Fprintln(w, "property float z")
	fmt.Fprintln(w, "property uchar red")
	fmt.Fprintln(w, "property uchar green")
	fmt.Fprintln(w, "property uchar blue")
	fmt.Fprintf(w, "element face %d\n", len(m.Triangles))
	fmt.Fprintln(w, "property list uchar int vertex_indices")
	fmt.Fprintln(w, "end_header")
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "%g %g %g %d %d %d\n", v.Position.X, v.Position.Y, v.Position.Z, v.Colour.R, v.Colour.G, v.Colour.B)
	}
	for _, t := range m.Triangles {
		fmt.Fprintf(w, "3 %d %d %d\n", t[0], t[1], t[2])
	}
	return nil
}

// encodeOBJ writes a plain Wavefront OBJ: vertices, vertex colours are
// dropped (not part of the base OBJ spec), faces as 1-indexed.
func encodeOBJ(w *bufio.Writer, m TriangleMesh) error {
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "v %g %g %g\n", v.Position.X, v.Position.Y, v.Position.Z)
	}
	for _, t := range m.Triangles {
		fmt.Fprintf(w, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
	}
	return nil
}

// encodeVTK writes a legacy ASCII VTK PolyData file.
func encodeVTK(w *bufio.Writer, m TriangleMesh) error {
	fmt.Fprintln(w, "# vtk DataFile Version 3.0")
	fmt.Fprintln(w, "voxelcore mesh export")
	fmt.Fprintln(w, "ASCII")
	fmt.Fprintln(w, "DATASET POLYDATA")
	fmt.Fprintf(w, "POINTS %d float\n", len(m.Vertices))
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "%g %g %g\n", v.Position.X, v.Position.Y, v.Position.Z)
	}
	fmt.Fprintf(w, "POLYGONS %d %d\n", len(m.Triangles), len(m.Triangles)*4)
	for _, t := range m.Triangles {
		fmt.Fprintf(w, "3 %d %d %d\n", t[0], t[1], t[2])
	}
	return nil
}
