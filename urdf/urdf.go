// Package urdf inspects and simplifies expanded URDF robot descriptions.
package urdf

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/openarm/display/xacro"
)

// FixedJoint is the URDF joint type that permits no motion.
const FixedJoint = "fixed"

// Robot is the subset of a URDF document needed to summarize and collapse its kinematic tree.
type Robot struct {
	XMLName xml.Name `xml:"robot"`
	Name    string   `xml:"name,attr"`
	Links   []Link   `xml:"link"`
	Joints  []Joint  `xml:"joint"`
}

// Link is a URDF link. Only its name is needed.
type Link struct {
	XMLName xml.Name `xml:"link"`
	Name    string   `xml:"name,attr"`
}

// Joint is a URDF joint.
type Joint struct {
	XMLName xml.Name `xml:"joint"`
	Name    string   `xml:"name,attr"`
	Type    string   `xml:"type,attr"`
	Parent  LinkRef  `xml:"parent"`
	Child   LinkRef  `xml:"child"`
	Origin  *Origin  `xml:"origin"`
	Axis    *Axis    `xml:"axis"`
	Limit   *Limit   `xml:"limit"`
}

// LinkRef names the link on one side of a joint.
type LinkRef struct {
	Link string `xml:"link,attr"`
}

// Origin is a joint's transform from its parent link.
type Origin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

// Axis is a joint's axis of motion.
type Axis struct {
	XYZ string `xml:"xyz,attr"`
}

// Limit bounds a joint's motion. Values are kept as written.
type Limit struct {
	Lower    string `xml:"lower,attr"`
	Upper    string `xml:"upper,attr"`
	Effort   string `xml:"effort,attr"`
	Velocity string `xml:"velocity,attr"`
}

// Parse reads a URDF document.
func Parse(description string) (*Robot, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("empty robot description")
	}
	var robot Robot
	if err := xml.Unmarshal([]byte(description), &robot); err != nil {
		return nil, errors.Wrap(err, "failed to parse URDF")
	}
	return &robot, nil
}

// Validate checks that every joint connects declared links and that no link has two parents.
func (r *Robot) Validate() error {
	links := make(map[string]bool, len(r.Links))
	var err error
	for _, link := range r.Links {
		if links[link.Name] {
			err = multierr.Append(err, errors.Errorf("link %q is declared more than once", link.Name))
		}
		links[link.Name] = true
	}

	parents := map[string]string{}
	for _, joint := range r.Joints {
		if !links[joint.Parent.Link] {
			err = multierr.Append(err, errors.Errorf("joint %q has unknown parent link %q", joint.Name, joint.Parent.Link))
		}
		if !links[joint.Child.Link] {
			err = multierr.Append(err, errors.Errorf("joint %q has unknown child link %q", joint.Name, joint.Child.Link))
		}
		if other, ok := parents[joint.Child.Link]; ok {
			err = multierr.Append(err, errors.Errorf("link %q is the child of both %q and %q", joint.Child.Link, other, joint.Name))
		}
		parents[joint.Child.Link] = joint.Name
	}
	return err
}

// RootLinks returns the links that are not the child of any joint, sorted by name.
func (r *Robot) RootLinks() []string {
	children := make(map[string]bool, len(r.Joints))
	for _, joint := range r.Joints {
		children[joint.Child.Link] = true
	}
	var roots []string
	for _, link := range r.Links {
		if !children[link.Name] {
			roots = append(roots, link.Name)
		}
	}
	sort.Strings(roots)
	return roots
}

// MovableJoints returns the joints that are not fixed, in document order.
func (r *Robot) MovableJoints() []Joint {
	var movable []Joint
	for _, joint := range r.Joints {
		if joint.Type != FixedJoint {
			movable = append(movable, joint)
		}
	}
	return movable
}

// Summary renders a table of the robot's joints.
func (r *Robot) Summary() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s: %d links, %d joints (%d movable)", r.Name, len(r.Links), len(r.Joints), len(r.MovableJoints())))
	t.AppendHeader(table.Row{"#", "Joint", "Type", "Parent", "Child", "Lower", "Upper"})
	for i, joint := range r.Joints {
		var lower, upper string
		if joint.Limit != nil {
			lower, upper = joint.Limit.Lower, joint.Limit.Upper
		}
		t.AppendRow(table.Row{i + 1, joint.Name, joint.Type, joint.Parent.Link, joint.Child.Link, lower, upper})
	}
	t.AppendFooter(table.Row{"", "Root", strings.Join(r.RootLinks(), ", ")})
	return t.Render()
}

// CollapseFixedJoints removes fixed joints whose child link is a leaf, together with that link.
// Everything else in the document, including elements other than links and joints, is kept in
// order. The returned count is the number of joints removed.
func CollapseFixedJoints(doc *xacro.Document) (*xacro.Document, int, error) {
	if doc == nil || doc.Root == nil {
		return nil, 0, errors.New("empty robot description")
	}
	robot, err := Parse(doc.String())
	if err != nil {
		return nil, 0, err
	}

	parentLinks := make(map[string]bool)
	for _, joint := range robot.Joints {
		parentLinks[joint.Parent.Link] = true
	}
	leafJoints := make(map[string]bool)
	leafLinks := make(map[string]bool)
	for _, joint := range robot.Joints {
		if joint.Type == FixedJoint && !parentLinks[joint.Child.Link] {
			leafJoints[joint.Name] = true
			leafLinks[joint.Child.Link] = true
		}
	}

	root := &xacro.Element{Name: doc.Root.Name, Attrs: doc.Root.Attrs}
	for _, child := range doc.Root.Children {
		if elem, ok := child.(*xacro.Element); ok {
			name, _ := elem.Attr("name")
			if (elem.Name == "joint" && leafJoints[name]) || (elem.Name == "link" && leafLinks[name]) {
				continue
			}
		}
		root.Children = append(root.Children, child)
	}
	return &xacro.Document{Root: root}, len(leafJoints), nil
}
