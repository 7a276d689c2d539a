package renderer

// The passes load SPIR-V compiled from the GLSL sources in shaders/.
//go:generate glslc -I ../shaders ../shaders/cubemap.vert -o ../shaders/cubemap.vert.spv
//go:generate glslc -I ../shaders ../shaders/cubemap.frag -o ../shaders/cubemap.frag.spv
//go:generate glslc -I ../shaders ../shaders/infinite_grid.vert -o ../shaders/infinite_grid.vert.spv
//go:generate glslc -I ../shaders ../shaders/infinite_grid.frag -o ../shaders/infinite_grid.frag.spv
//go:generate glslc -I ../shaders ../shaders/final_color.vert -o ../shaders/final_color.vert.spv
//go:generate glslc -I ../shaders ../shaders/final_color.frag -o ../shaders/final_color.frag.spv
